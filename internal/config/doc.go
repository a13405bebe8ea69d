// Package config provides configuration parsing for Wayfind projects.
//
// The configuration is stored in wayfind.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "name": "my-site",
//	  "baseURL": "https://example.com",
//	  "build": {
//	    "command": "go",
//	    "args": ["run", "./cmd/site"],
//	    "env": {
//	      "SITE_ENV": "production"
//	    }
//	  },
//	  "export": {
//	    "output": "dist",
//	    "concurrency": 4,
//	    "withContent": true
//	  },
//	  "deploy": {
//	    "bucket": "my-site-bucket",
//	    "prefix": "www",
//	    "region": "us-east-1"
//	  },
//	  "serve": {
//	    "host": "localhost",
//	    "port": 8080
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Output:", cfg.Export.Output)
package config
