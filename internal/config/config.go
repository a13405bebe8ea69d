package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wayfind-go/wayfind/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "wayfind.json"

	// DefaultPort is the default preview server port.
	DefaultPort = 8080

	// DefaultHost is the default preview server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default export output directory.
	DefaultOutput = "dist"

	// DefaultExtension is the default rendered document extension.
	DefaultExtension = ".html"

	// DefaultConcurrency is the default number of export workers.
	DefaultConcurrency = 4
)

// Config represents the wayfind.json configuration file.
type Config struct {
	// Name is the project name, used in the export manifest.
	Name string `json:"name,omitempty"`

	// BaseURL is the canonical base URL of the deployed site,
	// e.g. "https://example.com". Used for absolute URLs in the
	// site map and export manifest.
	BaseURL string `json:"baseURL,omitempty"`

	// Build configures the command that produces the site's routing
	// program for export.
	Build BuildConfig `json:"build,omitempty"`

	// Export configures static export.
	Export ExportConfig `json:"export,omitempty"`

	// Deploy configures publishing the exported site.
	Deploy DeployConfig `json:"deploy,omitempty"`

	// Serve configures the local preview server.
	Serve ServeConfig `json:"serve,omitempty"`

	// configPath is the path this config was loaded from (not serialized).
	configPath string
}

// BuildConfig describes how to run the site's export entry point.
type BuildConfig struct {
	// Command is the executable to run (e.g. "go").
	Command string `json:"command,omitempty"`

	// Args are the arguments passed to Command.
	Args []string `json:"args,omitempty"`

	// Env is extra environment variables set for the command.
	Env map[string]string `json:"env,omitempty"`
}

// ExportConfig contains static export settings.
type ExportConfig struct {
	// Output is the directory exported files are written to,
	// relative to the project root unless absolute.
	Output string `json:"output,omitempty"`

	// Root is the path of the subtree to export. Defaults to "/".
	Root string `json:"root,omitempty"`

	// Extension is the file extension of rendered documents.
	// Defaults to ".html".
	Extension string `json:"extension,omitempty"`

	// Concurrency is the number of pages rendered in parallel.
	Concurrency int `json:"concurrency,omitempty"`

	// WithContent resolves page content during export so rendered
	// documents include it.
	WithContent bool `json:"withContent,omitempty"`
}

// DeployConfig contains publish settings.
type DeployConfig struct {
	// Bucket is the S3 bucket to upload to.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the key prefix inside the bucket.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region of the bucket.
	Region string `json:"region,omitempty"`

	// Prune deletes remote objects that no longer exist locally.
	Prune bool `json:"prune,omitempty"`
}

// ServeConfig contains preview server settings.
type ServeConfig struct {
	// Host is the interface to bind.
	Host string `json:"host,omitempty"`

	// Port is the TCP port to listen on.
	Port int `json:"port,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Export: ExportConfig{
			Output:      DefaultOutput,
			Root:        "/",
			Extension:   DefaultExtension,
			Concurrency: DefaultConcurrency,
		},
		Serve: ServeConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// Load reads the configuration from the given directory.
// It looks for wayfind.json in the directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	return LoadFile(path)
}

// LoadFile reads the configuration from the given file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("Looked for: " + path).
				WithSuggestion("Run 'wayfind init' to create a new project, or cd into an existing one.")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("File: " + path).
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "config has no file path; use SaveTo")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the given path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Trailing newline keeps the file friendly to editors and diffs.
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	if c.Export.Output == "" {
		c.Export.Output = DefaultOutput
	}
	if c.Export.Root == "" {
		c.Export.Root = "/"
	}
	if c.Export.Extension == "" {
		c.Export.Extension = DefaultExtension
	}
	if c.Export.Concurrency == 0 {
		c.Export.Concurrency = DefaultConcurrency
	}
	if c.Serve.Host == "" {
		c.Serve.Host = DefaultHost
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		return errors.New("E103").
			WithDetail("serve.port must be between 1 and 65535, got " + strconv.Itoa(c.Serve.Port))
	}

	if c.Export.Concurrency < 1 {
		return errors.New("E103").
			WithDetail("export.concurrency must be at least 1, got " + strconv.Itoa(c.Export.Concurrency))
	}

	if !strings.HasPrefix(c.Export.Root, "/") {
		return errors.New("E103").
			WithDetail("export.root must start with '/', got " + strconv.Quote(c.Export.Root))
	}

	if !strings.HasPrefix(c.Export.Extension, ".") {
		return errors.New("E103").
			WithDetail("export.extension must start with '.', got " + strconv.Quote(c.Export.Extension))
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return errors.New("E103").
				WithDetail("baseURL must be an absolute URL like https://example.com, got " + strconv.Quote(c.BaseURL))
		}
	}

	return nil
}

// OutputPath returns the absolute export output directory.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Export.Output) {
		return c.Export.Output
	}
	return filepath.Join(c.Dir(), c.Export.Output)
}

// ServeAddress returns the host:port address for the preview server.
func (c *Config) ServeAddress() string {
	return c.Serve.Host + ":" + strconv.Itoa(c.Serve.Port)
}

// ServeURL returns the http URL of the preview server.
func (c *Config) ServeURL() string {
	return "http://" + c.ServeAddress()
}

// Exists reports whether a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from the given directory looking for
// a wayfind.json file. Returns the directory containing it.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("Searched from: " + start).
				WithSuggestion("Run 'wayfind init' to create a new project, or cd into an existing one.")
		}
		dir = parent
	}
}

// LoadFromWorkingDir finds the project root starting from the current
// working directory and loads its configuration.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
