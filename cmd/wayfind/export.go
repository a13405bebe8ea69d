package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wayfind-go/wayfind/internal/config"
	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/export"
)

func exportCmd() *cobra.Command {
	var (
		output      string
		withContent bool
		root        string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the site's static routes",
		Long: `Export every static route of the site to plain files.

This command runs the build command from wayfind.json with
WAYFIND_EXPORT_DIR set. The site binary enumerates its route tree,
renders each page, and writes documents, redirect stubs, and a
manifest into the output directory.

Examples:
  wayfind export
  wayfind export --output=dist
  wayfind export --content --root=/docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(output, withContent, root)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from wayfind.json)")
	cmd.Flags().BoolVar(&withContent, "content", false, "Resolve page content during export")
	cmd.Flags().StringVar(&root, "root", "", "Export only the subtree under this path")

	return cmd
}

func runExport(output string, withContent bool, root string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if output != "" {
		cfg.Export.Output = output
	}
	if withContent {
		cfg.Export.WithContent = true
	}
	if root != "" {
		cfg.Export.Root = root
	}

	if cfg.Build.Command == "" {
		return errors.New("E201").
			WithDetail("wayfind.json has no build.command.").
			WithSuggestion(`Set build.command to the command that runs your site, e.g. {"command": "go", "args": ["run", "."]}.`)
	}

	outputPath := cfg.OutputPath()

	fmt.Println("  Exporting...")
	fmt.Println()
	info("Running %s", buildCommandLine(cfg))

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()

	buildCmd := exec.CommandContext(ctx, cfg.Build.Command, cfg.Build.Args...)
	buildCmd.Dir = cfg.Dir()

	env := os.Environ()
	for k, v := range cfg.Build.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, export.EnvOutputDir+"="+outputPath)
	if cfg.Export.WithContent {
		env = append(env, export.EnvWithContent+"=1")
	}
	if cfg.Export.Root != "/" {
		env = append(env, export.EnvRoot+"="+cfg.Export.Root)
	}
	buildCmd.Env = env

	buildCmd.Stdout = os.Stdout
	var stderr bytes.Buffer
	buildCmd.Stderr = &stderr

	if err := buildCmd.Run(); err != nil {
		return errors.New("E201").
			WithDetail(stderr.String()).
			Wrap(err)
	}

	manifest, err := readManifest(outputPath)
	if err != nil {
		return errors.New("E201").
			WithDetail("The build command completed but wrote no manifest to " + outputPath + ".").
			WithSuggestion("Ensure your program calls export.RunIfRequested early in main.").
			Wrap(err)
	}

	printExportResult(cfg, manifest, time.Since(start))
	return nil
}

// buildCommandLine renders the configured build command for display.
func buildCommandLine(cfg *config.Config) string {
	line := cfg.Build.Command
	for _, arg := range cfg.Build.Args {
		line += " " + arg
	}
	return line
}

// readManifest loads manifest.json from an export directory.
func readManifest(dir string) (*export.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, export.ManifestName))
	if err != nil {
		return nil, err
	}
	var m export.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// printExportResult prints the manifest as a file tree with sizes.
func printExportResult(cfg *config.Config, m *export.Manifest, elapsed time.Duration) {
	fmt.Println()
	success("Exported %d pages in %s", len(m.Pages), elapsed.Round(time.Millisecond))
	fmt.Println()
	fmt.Println("  Output:")
	fmt.Printf("    %s/\n", cfg.Export.Output)
	for _, p := range m.Pages {
		fmt.Printf("    ├── %-32s (%s)\n", p.File, formatBytes(p.Size))
	}
	for _, from := range redirectPaths(m) {
		fmt.Printf("    ├── %-32s (→ %s)\n", from, m.Redirects[from])
	}
	fmt.Printf("    └── %s\n", export.ManifestName)
	fmt.Println()
	info("Total %s", formatBytes(m.TotalSize()))
	fmt.Println()
	fmt.Println("  To preview:")
	fmt.Println("    wayfind serve")
	fmt.Println()
}

func redirectPaths(m *export.Manifest) []string {
	paths := make([]string, 0, len(m.Redirects))
	for from := range m.Redirects {
		paths = append(paths, from)
	}
	sort.Strings(paths)
	return paths
}
