package main

import (
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/giygas/labref-api/cli"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/logging"
)

func main() {
	// .env is optional; the environment wins over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to read .env", "error", err)
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
