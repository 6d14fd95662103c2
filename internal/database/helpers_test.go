package database_test

import "sbk-go/internal/config"

func configWithDataDir(dir string) *config.Config {
	return &config.Config{DataDir: dir}
}
