// Package errors provides structured, coded errors for the wayfind CLI.
//
// Library code under pkg/ returns plain errors; this package is for the
// tooling surface (config loading, export, deploy, serve), where errors
// end up on a developer's terminal and should explain themselves.
//
// # Error Categories
//
// Errors are organized into categories:
//   - config: wayfind.json problems (missing, malformed, invalid values)
//   - export: static export failures (build command, route resolution, output)
//   - deploy: publishing failures (credentials, bucket access, uploads)
//   - serve: preview server failures (missing export, bind errors)
//   - cli: command usage errors
//
// # Error Codes
//
// Each error has a unique code (e.g., "E101") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E101").
//	    WithSuggestion("Run the command from your project root, or create wayfind.json")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Configuration file not found
//	//
//	//   No wayfind.json was found in this directory or any parent.
//	//
//	//   Hint: Run the command from your project root, or create wayfind.json
//	//
//	//   Learn more: https://wayfind-go.dev/errors/E101
package errors
