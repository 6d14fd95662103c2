package vault

import (
	"context"
	"fmt"

	"sbk-go/internal/config"
	"sbk-go/internal/sbk"
)

// NewVaultFromConfig creates the Vault a job uploads to, based on its storage type.
func NewVaultFromConfig(ctx context.Context, cfg *config.Config, job config.JobConfig) (sbk.Vault, error) {
	switch job.Storage {
	case config.StorageMemory:
		return NewMemoryVault(job.Name), nil
	case config.StorageS3, "":
		return NewS3Vault(ctx, S3Options{
			Bucket:          job.BucketName,
			Profile:         job.AWSProfile,
			Region:          job.S3Region,
			Endpoint:        job.S3Endpoint,
			AccessKeyID:     job.S3AccessKeyID,
			SecretAccessKey: job.S3SecretAccessKey,
			ConfigFile:      cfg.AWSConfigFile,
			CredentialsFile: cfg.AWSCredentialsFile,
		})
	case config.StorageFilesystem:
		if job.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(job.Name, job.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", job.Storage)
	}
}
