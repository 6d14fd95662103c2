package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backends a job can upload to.
const (
	StorageS3         = "s3"
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
)

// Compression codecs for per-file compression.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// requiredJobKeys must be present in every job table, even when false or empty.
var requiredJobKeys = []string{
	"base_path",
	"bucket_name",
	"remote_prefix",
	"compress",
	"encrypt",
	"upload",
	"aws_profile",
	"tmp_path",
}

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main configuration for sbk.
type Config struct {
	LogDir             string           `toml:"log_dir"`
	DataDir            string           `toml:"data_dir"`
	Workers            int              `toml:"workers"`
	AWSConfigFile      string           `toml:"aws_config_file,omitempty"`
	AWSCredentialsFile string           `toml:"aws_credentials_file,omitempty"`
	Encryption         EncryptionConfig `toml:"encryption"`

	// Jobs maps job names to their settings. Use OrderedJobs to visit them
	// in file order.
	Jobs map[string]JobConfig `toml:"jobs"`

	// JobOrder lists job names in the order their tables appear in the file.
	JobOrder []string `toml:"-"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type,omitempty"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// JobConfig is one backup job.
type JobConfig struct {
	Name string `toml:"-"`

	BasePath     string `toml:"base_path"`
	BucketName   string `toml:"bucket_name"`
	RemotePrefix string `toml:"remote_prefix"`
	Compress     bool   `toml:"compress"`
	Encrypt      bool   `toml:"encrypt"`
	Upload       bool   `toml:"upload"`
	AWSProfile   string `toml:"aws_profile"`
	TmpPath      string `toml:"tmp_path"`

	// KeyID is an age recipient, an ssh public key or a recipients file.
	// Empty means the global public key.
	KeyID         string `toml:"key_id,omitempty"`
	ConsiderOlder int    `toml:"consider_older,omitempty"`
	Include       string `toml:"include,omitempty"`
	Exclude       string `toml:"exclude,omitempty"`
	IgnoreCase    bool   `toml:"ignore_case,omitempty"`

	Archive         bool   `toml:"archive,omitempty"`
	ArchiveDepth    int    `toml:"archive_depth,omitempty"`
	DeleteSource    bool   `toml:"delete_source,omitempty"`
	DeleteEmptyDirs bool   `toml:"delete_empty_dirs,omitempty"`
	SnapshotName    string `toml:"snapshot_name,omitempty"`
	TestFilters     bool   `toml:"test_filters,omitempty"`
	TestArchive     bool   `toml:"test_archive,omitempty"`
	Compression     string `toml:"compression,omitempty"`

	// Storage selects the vault backend. This uses a tagged union pattern -
	// the Storage field determines which of the fields below are relevant.
	Storage string `toml:"storage,omitempty"` // "s3" (default), "filesystem" or "memory"

	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a Config rooted at baseDir with one example job.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir:  filepath.Join(baseDir, "logs"),
		DataDir: filepath.Join(baseDir, "data"),
		Workers: 1,
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "sbk.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "sbk.key"),
		},
		Jobs: map[string]JobConfig{
			"example": {
				BasePath:     "/srv/data",
				BucketName:   "my-backup-bucket",
				RemotePrefix: "data",
				Compress:     true,
				Encrypt:      false,
				Upload:       true,
				AWSProfile:   "default",
				TmpPath:      filepath.Join(baseDir, "tmp"),
			},
		},
		JobOrder: []string{"example"},
	}
}

// OrderedJobs returns the jobs in file order, each with its Name set.
func (c *Config) OrderedJobs() []JobConfig {
	jobs := make([]JobConfig, 0, len(c.JobOrder))
	for _, name := range c.JobOrder {
		job, ok := c.Jobs[name]
		if !ok {
			continue
		}
		job.Name = name
		jobs = append(jobs, job)
	}
	return jobs
}

// Job returns the named job with its Name set.
func (c *Config) Job(name string) (JobConfig, bool) {
	job, ok := c.Jobs[name]
	job.Name = name
	return job, ok
}

// ApplyDefaults fills unset optional settings and resolves relative paths
// against baseDir.
func (c *Config) ApplyDefaults(baseDir string) {
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	c.LogDir = resolve(baseDir, c.LogDir)
	c.DataDir = resolve(baseDir, c.DataDir)
	c.AWSConfigFile = resolve(baseDir, c.AWSConfigFile)
	c.AWSCredentialsFile = resolve(baseDir, c.AWSCredentialsFile)
	c.Encryption.PublicKeyPath = resolve(baseDir, c.Encryption.PublicKeyPath)
	c.Encryption.PrivateKeyPath = resolve(baseDir, c.Encryption.PrivateKeyPath)

	for name, job := range c.Jobs {
		job.BasePath = resolve(baseDir, job.BasePath)
		job.TmpPath = resolve(baseDir, job.TmpPath)
		job.FSVaultRoot = resolve(baseDir, job.FSVaultRoot)
		job.RemotePrefix = strings.Trim(job.RemotePrefix, "/")
		if job.Compression == "" {
			job.Compression = CompressionGzip
		}
		if job.Storage == "" {
			job.Storage = StorageS3
		}
		c.Jobs[name] = job
	}
}

// resolve makes path absolute relative to baseDir and drops trailing
// separators. Empty paths stay empty.
func resolve(baseDir, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

// Validate checks every job and returns all problems found, each wrapping
// ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Jobs) == 0 {
		errs = append(errs, fmt.Errorf("%w: no jobs defined", ErrInvalid))
	}
	for _, job := range c.OrderedJobs() {
		errs = append(errs, c.validateJob(job)...)
	}
	return errors.Join(errs...)
}

func (c *Config) validateJob(job JobConfig) []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: job %s: %s", ErrInvalid, job.Name, fmt.Sprintf(format, args...)))
	}

	if job.BasePath == "" {
		bad("base_path is empty")
	}
	if job.TmpPath == "" && (job.Compress || job.Encrypt || job.Archive) {
		bad("tmp_path is empty")
	}
	if job.ConsiderOlder < 0 {
		bad("consider_older must not be negative")
	}
	if job.ArchiveDepth < 0 {
		bad("archive_depth must not be negative")
	}
	for key, pattern := range map[string]string{"include": job.Include, "exclude": job.Exclude} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			bad("%s pattern: %v", key, err)
		}
	}
	switch job.Compression {
	case "", CompressionGzip, CompressionZstd:
	default:
		bad("unknown compression %q", job.Compression)
	}
	switch job.Storage {
	case "", StorageS3:
		if job.Upload && job.BucketName == "" {
			bad("bucket_name is empty")
		}
	case StorageFilesystem:
		if job.FSVaultRoot == "" {
			bad("filesystem storage requires fs_vault_root to be set")
		}
	case StorageMemory:
	default:
		bad("unknown storage %q", job.Storage)
	}
	if job.Encrypt && job.KeyID == "" && c.Encryption.PublicKeyPath == "" {
		bad("encrypt is set but neither key_id nor encryption.public_key_path is configured")
	}
	return errs
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. It records the job order
// and rejects jobs missing a required key.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "jobs" || seen[key[1]] {
			continue
		}
		seen[key[1]] = true
		cfg.JobOrder = append(cfg.JobOrder, key[1])
	}

	var errs []error
	for _, name := range cfg.JobOrder {
		for _, req := range requiredJobKeys {
			if !md.IsDefined("jobs", name, req) {
				errs = append(errs, fmt.Errorf("%w: job %s: missing required key %s", ErrInvalid, name, req))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path, applies
// defaults relative to the working directory and validates it.
func ReadFromFile(path, workDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.ApplyDefaults(workDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
