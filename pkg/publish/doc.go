// Package publish pushes an exported site to its hosting destination.
//
// Two publishers ship with wayfind: LocalDir copies the export into
// another directory (network shares, local web roots), and S3 uploads
// it to an AWS S3 bucket with correct content types, optionally pruning
// objects the export no longer produces.
//
// S3 usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	pub := publish.NewS3(s3.NewFromConfig(cfg), "my-bucket", "www")
//	err := pub.Publish(ctx, manifest, "dist")
package publish
