package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/wayfind-go/wayfind/internal/config"
	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/publish"
)

func deployCmd() *cobra.Command {
	var (
		bucket string
		prefix string
		region string
		prune  bool
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish an exported site to S3",
		Long: `Upload a previously exported site to an S3 bucket.

Files are uploaded with correct content types; pages carry their
manifest digest as object metadata. With --prune, objects under the
prefix that the export no longer produces are deleted.

Credentials come from the standard AWS environment (env vars,
~/.aws/config, instance roles).

Examples:
  wayfind deploy
  wayfind deploy --bucket=my-site --prefix=www
  wayfind deploy --prune`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(bucket, prefix, region, prune, dir)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket (default from wayfind.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix inside the bucket (default from wayfind.json)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default from wayfind.json)")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete remote objects missing from this export")
	cmd.Flags().StringVar(&dir, "dir", "", "Export directory to publish (default from wayfind.json)")

	return cmd
}

func runDeploy(bucket, prefix, region string, prune bool, dir string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if bucket != "" {
		cfg.Deploy.Bucket = bucket
	}
	if prefix != "" {
		cfg.Deploy.Prefix = prefix
	}
	if region != "" {
		cfg.Deploy.Region = region
	}
	if prune {
		cfg.Deploy.Prune = true
	}
	if dir != "" {
		cfg.Export.Output = dir
	}

	if cfg.Deploy.Bucket == "" {
		return errors.New("E301").
			WithSuggestion("Set deploy.bucket in wayfind.json or pass --bucket.")
	}

	outputPath := cfg.OutputPath()
	manifest, err := readManifest(outputPath)
	if err != nil {
		return errors.New("E303").
			WithDetail("No manifest found in " + outputPath + ".").
			WithSuggestion("Run 'wayfind export' first.").
			Wrap(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.Deploy.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Deploy.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return errors.New("E302").
			WithDetail("AWS configuration could not be loaded.").
			Wrap(err)
	}

	target := "s3://" + cfg.Deploy.Bucket
	if cfg.Deploy.Prefix != "" {
		target += "/" + cfg.Deploy.Prefix
	}

	fmt.Println("  Deploying...")
	fmt.Println()
	info("Publishing %s to %s", cfg.Export.Output, target)

	var pubOpts []publish.S3Option
	if cfg.Deploy.Prune {
		pubOpts = append(pubOpts, publish.WithPrune())
	}
	publisher := publish.NewS3(s3.NewFromConfig(awsCfg), cfg.Deploy.Bucket, cfg.Deploy.Prefix, pubOpts...)

	if err := publisher.Publish(ctx, manifest, outputPath); err != nil {
		return err
	}

	fmt.Println()
	success("Deployed %d pages (%s) to %s", len(manifest.Pages), formatBytes(manifest.TotalSize()), target)
	if cfg.BaseURL != "" {
		info("Live at %s", cfg.BaseURL)
	}
	fmt.Println()

	return nil
}
