package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wayfind-go/wayfind/internal/config"
	"github.com/wayfind-go/wayfind/internal/preview"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview an exported site locally",
		Long: `Serve a previously exported site on a local HTTP server.

The preview server maps pretty URLs onto the export layout, answers
manifest redirects with real 302s, and reloads connected browsers
when the site is re-exported.

Examples:
  wayfind serve
  wayfind serve --port=4000
  wayfind serve --dir=dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host, dir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from wayfind.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind (default from wayfind.json)")
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory to serve (default from wayfind.json)")

	return cmd
}

func runServe(port int, host string, dir string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if port > 0 {
		cfg.Serve.Port = port
	}
	if host != "" {
		cfg.Serve.Host = host
	}
	if dir != "" {
		cfg.Export.Output = dir
	}

	printBanner()
	fmt.Println("  serve")
	fmt.Println()

	server := preview.NewServer(preview.Options{
		Dir:       cfg.OutputPath(),
		Extension: cfg.Export.Extension,
		OnReload: func(clients int) {
			success("Reloaded %d browsers", clients)
		},
	})

	ctx, cancel := signalContext()
	defer cancel()

	info("Serving %s at %s", cfg.Export.Output, cfg.ServeURL())
	info("Press Ctrl+C to stop")
	fmt.Println()

	return server.Start(ctx, cfg.ServeAddress())
}
