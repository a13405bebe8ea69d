package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E101-E199)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No wayfind.json was found in this directory or any parent.",
		DocURL:   "https://wayfind-go.dev/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Configuration file is not valid JSON",
		Detail:   "wayfind.json exists but could not be parsed.",
		DocURL:   "https://wayfind-go.dev/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Configuration is invalid",
		Detail:   "wayfind.json parsed, but one or more values failed validation.",
		DocURL:   "https://wayfind-go.dev/errors/E103",
	},

	// ============================================
	// Export Errors (E201-E299)
	// ============================================

	"E201": {
		Category: CategoryExport,
		Message:  "Export build command failed",
		Detail:   "The configured build command exited with an error before any routes were exported.",
		DocURL:   "https://wayfind-go.dev/errors/E201",
	},
	"E202": {
		Category: CategoryExport,
		Message:  "Failed to write export output",
		Detail:   "A page, redirect stub, or the manifest could not be written to the output directory.",
		DocURL:   "https://wayfind-go.dev/errors/E202",
	},
	"E203": {
		Category: CategoryExport,
		Message:  "Route resolution failed during export",
		Detail:   "A route loader returned an error while the site map was being resolved.",
		DocURL:   "https://wayfind-go.dev/errors/E203",
	},
	"E204": {
		Category: CategoryExport,
		Message:  "Page rendering failed during export",
		Detail:   "The renderer returned an error for a resolved route.",
		DocURL:   "https://wayfind-go.dev/errors/E204",
	},

	// ============================================
	// Deploy Errors (E301-E399)
	// ============================================

	"E301": {
		Category: CategoryDeploy,
		Message:  "Deploy target is not configured",
		Detail:   "The deploy section of wayfind.json is missing a bucket name.",
		DocURL:   "https://wayfind-go.dev/errors/E301",
	},
	"E302": {
		Category: CategoryDeploy,
		Message:  "Upload failed",
		Detail:   "One or more files could not be uploaded to the deploy target.",
		DocURL:   "https://wayfind-go.dev/errors/E302",
	},
	"E303": {
		Category: CategoryDeploy,
		Message:  "Nothing to deploy",
		Detail:   "The export output directory is missing or empty. Deploy publishes the result of a previous export.",
		DocURL:   "https://wayfind-go.dev/errors/E303",
	},

	// ============================================
	// Serve Errors (E401-E499)
	// ============================================

	"E401": {
		Category: CategoryServe,
		Message:  "Export output not found",
		Detail:   "The preview server serves a previously exported site, but the output directory does not exist.",
		DocURL:   "https://wayfind-go.dev/errors/E401",
	},
	"E402": {
		Category: CategoryServe,
		Message:  "Preview server failed to start",
		Detail:   "The HTTP listener could not be started on the configured address.",
		DocURL:   "https://wayfind-go.dev/errors/E402",
	},
}
