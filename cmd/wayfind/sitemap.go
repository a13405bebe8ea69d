package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wayfind-go/wayfind/internal/config"
)

func sitemapCmd() *cobra.Command {
	var (
		asJSON bool
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Print the exported site's routes",
		Long: `Print every page and redirect recorded in the export manifest.

Examples:
  wayfind sitemap
  wayfind sitemap --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSitemap(asJSON, dir)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the manifest as JSON")
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory to read (default from wayfind.json)")

	return cmd
}

func runSitemap(asJSON bool, dir string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.Export.Output = dir
	}

	manifest, err := readManifest(cfg.OutputPath())
	if err != nil {
		errorMsg("No manifest found in %s", cfg.Export.Output)
		info("Run 'wayfind export' first.")
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}

	fmt.Println()
	fmt.Println("  Pages:")
	for _, p := range manifest.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		fmt.Printf("    %-32s %-24s (%s)\n", p.Path, title, formatBytes(p.Size))
	}

	if len(manifest.Redirects) > 0 {
		fmt.Println()
		fmt.Println("  Redirects:")
		for _, from := range redirectPaths(manifest) {
			fmt.Printf("    %-32s → %s\n", from, manifest.Redirects[from])
		}
	}

	fmt.Println()
	info("%d pages, %d redirects, generated %s",
		len(manifest.Pages), len(manifest.Redirects),
		manifest.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Println()

	return nil
}
