package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sbk-go/internal/app"
	"sbk-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config, or the default location.
// Relative paths inside it resolve against the working directory. A config
// that cannot be loaded is also recorded in <cwd>/logs.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaults["config_path"]
	}

	cfg, err := config.ReadFromFile(path, defaults["base_dir"])
	if err != nil {
		if logErr := app.LogConfigError(defaults["base_dir"], path, err); logErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", logErr)
		}
		return nil, path, err
	}
	return cfg, path, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("a terminal is required to enter the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "sbk",
	Short: "Incremental backup to object storage",
	Long:  "Runs every job in the configuration: scans its base path, uploads files changed since the last run and records the new snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := app.NewSbkApp(cfg, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()
		a.ReportToConsole(os.Stdout)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := a.RunAll(ctx)
		for _, res := range results {
			if res.Failed > 0 {
				fmt.Printf("%s: %d unit(s) failed, see the log in %s\n", res.Job, res.Failed, cfg.LogDir)
			}
		}
		return err
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = defaults["config_path"]
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and list jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s is valid.\n\n", path)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		fmt.Printf("Workers:  %d\n\n", cfg.Workers)
		for _, job := range cfg.OrderedJobs() {
			target := job.Storage
			switch job.Storage {
			case config.StorageS3:
				target = "s3://" + job.BucketName
			case config.StorageFilesystem:
				target = job.FSVaultRoot
			}
			fmt.Printf("%-15s %s -> %s/%s  compress=%t encrypt=%t upload=%t archive=%t\n",
				job.Name, job.BasePath, target, job.RemotePrefix,
				job.Compress, job.Encrypt, job.Upload, job.Archive)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View job run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.NewSbkApp(cfg, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No job runs recorded.")
			return nil
		}

		for _, r := range runs {
			d := r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("#%d  %-15s  %s  %-8s  %8s  changed:%d uploaded:%d failed:%d\n",
				r.ID,
				r.Job,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				d,
				r.Counters.Changed,
				r.Counters.Uploaded,
				r.Counters.Failed,
			)
			if r.Error != "" {
				fmt.Printf("    error: %s\n", r.Error)
			}
		}
		return nil
	},
}

// keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.GenerateKeys(cfg, pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt a downloaded artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = app.DecryptedName(args[0])
		}

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		if err := app.DecryptFile(cfg, pass, args[0], out); err != nil {
			return err
		}
		fmt.Printf("Decrypted to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $"+app.ConfigPathEnv+" or ./"+app.DefaultConfigName+")")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringP("output", "o", "", "Output file (default: FILE without its encryption suffix)")
}
