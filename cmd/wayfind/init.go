package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wayfind-go/wayfind/internal/config"
	"github.com/wayfind-go/wayfind/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		name    string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a wayfind.json in the current directory",
		Long: `Write a wayfind.json with default settings to the current directory.

Examples:
  wayfind init
  wayfind init --name=my-site --base-url=https://example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(name, baseURL)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Canonical base URL of the deployed site")

	return cmd
}

func runInit(name, baseURL string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	if config.Exists(wd) {
		return errors.Newf(errors.CategoryConfig, "%s already exists in %s", config.ConfigFileName, wd).
			WithSuggestion("Edit the existing file instead of re-running init.")
	}

	cfg := config.New()
	if name == "" {
		name = filepath.Base(wd)
	}
	cfg.Name = name
	cfg.BaseURL = baseURL
	cfg.Build.Command = "go"
	cfg.Build.Args = []string{"run", "."}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(filepath.Join(wd, config.ConfigFileName)); err != nil {
		return err
	}

	success("Created %s", config.ConfigFileName)
	fmt.Println()
	info("Next steps:")
	info("  1. Point build.command at the program that serves your routes")
	info("  2. Call export.RunIfRequested early in its main")
	info("  3. Run 'wayfind export'")
	fmt.Println()

	return nil
}
