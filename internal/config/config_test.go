package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
log_dir = "logs"
workers = 4

[encryption]
public_key_path = "keys/sbk.pub"

[jobs.zeta]
base_path = "/srv/zeta/"
bucket_name = "bucket"
remote_prefix = "/zeta/"
compress = true
encrypt = false
upload = true
aws_profile = "default"
tmp_path = "/tmp/sbk"

[jobs.alpha]
base_path = "/srv/alpha"
bucket_name = "bucket"
remote_prefix = ""
compress = false
encrypt = true
upload = false
aws_profile = "default"
tmp_path = "/tmp/sbk"
consider_older = 5
include = '\.csv$'
archive = true
archive_depth = 2
compression = "zstd"
storage = "filesystem"
fs_vault_root = "vault"
`

func TestManager_Read_JobOrderAndFields(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got := strings.Join(cfg.JobOrder, ","); got != "zeta,alpha" {
		t.Errorf("JobOrder = %s, want zeta,alpha", got)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}

	jobs := cfg.OrderedJobs()
	if len(jobs) != 2 {
		t.Fatalf("len(OrderedJobs()) = %d, want 2", len(jobs))
	}
	alpha := jobs[1]
	if alpha.Name != "alpha" {
		t.Errorf("Name = %q, want alpha", alpha.Name)
	}
	if alpha.ConsiderOlder != 5 || alpha.ArchiveDepth != 2 || !alpha.Archive {
		t.Errorf("optional fields not decoded: %+v", alpha)
	}
	if alpha.Include != `\.csv$` {
		t.Errorf("Include = %q", alpha.Include)
	}
	if alpha.Compression != CompressionZstd || alpha.Storage != StorageFilesystem {
		t.Errorf("Compression/Storage = %q/%q", alpha.Compression, alpha.Storage)
	}
}

func TestManager_Read_MissingRequiredKey(t *testing.T) {
	input := `
[jobs.docs]
base_path = "/srv/docs"
bucket_name = "bucket"
remote_prefix = ""
compress = false
upload = true
aws_profile = "default"
tmp_path = "/tmp"
`
	m := &Manager{}
	_, err := m.Read(strings.NewReader(input))
	if err == nil {
		t.Fatal("Read() expected error for missing encrypt key")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error %v does not wrap ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "encrypt") {
		t.Errorf("error %q does not name the missing key", err)
	}
}

func TestManager_Read_Malformed(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("[jobs.docs\nbase_path = ")); err == nil {
		t.Fatal("Read() expected error for malformed TOML")
	}
}

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/sbk")
	job := original.Jobs["example"]
	job.Exclude = `^\.`
	job.ArchiveDepth = 1
	original.Jobs["example"] = job

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
	gotJob, ok := got.Job("example")
	if !ok {
		t.Fatal("job example missing after round trip")
	}
	if gotJob.BasePath != job.BasePath || gotJob.Exclude != job.Exclude || gotJob.ArchiveDepth != 1 {
		t.Errorf("job = %+v, want %+v", gotJob, job)
	}
	if !gotJob.Compress || !gotJob.Upload || gotJob.Encrypt {
		t.Errorf("job flags not preserved: %+v", gotJob)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	cfg.ApplyDefaults("/work")

	if cfg.LogDir != "/work/logs" {
		t.Errorf("LogDir = %q, want /work/logs", cfg.LogDir)
	}
	if cfg.DataDir != "/work/data" {
		t.Errorf("DataDir = %q, want /work/data", cfg.DataDir)
	}
	if cfg.Encryption.PublicKeyPath != "/work/keys/sbk.pub" {
		t.Errorf("PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}

	zeta, _ := cfg.Job("zeta")
	if zeta.BasePath != "/srv/zeta" {
		t.Errorf("BasePath = %q, want trailing separator trimmed", zeta.BasePath)
	}
	if zeta.RemotePrefix != "zeta" {
		t.Errorf("RemotePrefix = %q, want zeta", zeta.RemotePrefix)
	}
	if zeta.Compression != CompressionGzip || zeta.Storage != StorageS3 {
		t.Errorf("defaults = %q/%q, want gzip/s3", zeta.Compression, zeta.Storage)
	}

	alpha, _ := cfg.Job("alpha")
	if alpha.FSVaultRoot != "/work/vault" {
		t.Errorf("FSVaultRoot = %q, want /work/vault", alpha.FSVaultRoot)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig("/base")
		cfg.ApplyDefaults("/base")
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(j *JobConfig, c *Config)
		wantErr string
	}{
		{name: "valid", modify: func(*JobConfig, *Config) {}},
		{name: "bad include", modify: func(j *JobConfig, _ *Config) { j.Include = "([" }, wantErr: "include pattern"},
		{name: "bad exclude", modify: func(j *JobConfig, _ *Config) { j.Exclude = "*x" }, wantErr: "exclude pattern"},
		{name: "negative consider_older", modify: func(j *JobConfig, _ *Config) { j.ConsiderOlder = -1 }, wantErr: "consider_older"},
		{name: "negative archive_depth", modify: func(j *JobConfig, _ *Config) { j.ArchiveDepth = -2 }, wantErr: "archive_depth"},
		{name: "unknown compression", modify: func(j *JobConfig, _ *Config) { j.Compression = "lz4" }, wantErr: "compression"},
		{name: "unknown storage", modify: func(j *JobConfig, _ *Config) { j.Storage = "ftp" }, wantErr: "storage"},
		{name: "filesystem without root", modify: func(j *JobConfig, _ *Config) { j.Storage = StorageFilesystem }, wantErr: "fs_vault_root"},
		{name: "s3 upload without bucket", modify: func(j *JobConfig, _ *Config) { j.BucketName = "" }, wantErr: "bucket_name"},
		{
			name: "encrypt without key",
			modify: func(j *JobConfig, c *Config) {
				j.Encrypt = true
				c.Encryption.PublicKeyPath = ""
			},
			wantErr: "key_id",
		},
		{
			name: "encrypt with key id only",
			modify: func(j *JobConfig, c *Config) {
				j.Encrypt = true
				j.KeyID = "age1example"
				c.Encryption.PublicKeyPath = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			job := cfg.Jobs["example"]
			tt.modify(&job, cfg)
			cfg.Jobs["example"] = job

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_NoJobs(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for empty job list")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "backup_config.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "backup_config.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "backup_config.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path, dir)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if len(got.OrderedJobs()) != 1 {
			t.Errorf("got %d jobs, want 1", len(got.OrderedJobs()))
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/backup_config.toml", "/"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("returns error for invalid job", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "backup_config.toml")
		content := strings.Replace(sampleConfig, `include = '\.csv$'`, `include = '(['`, 1)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := ReadFromFile(path, dir)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("ReadFromFile() error = %v, want ErrInvalid", err)
		}
	})
}
