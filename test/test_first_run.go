package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/localrivet/bijimcp/internal/config"
)

// Manual walkthrough of the first-run flow: load against a path with no
// config file, confirm the template lands on disk, then load it again.
func main() {
	dir, err := os.MkdirTemp("", "bijimcp-firstrun")
	if err != nil {
		fmt.Printf("Error creating temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, ".biji-mcp", "config.json")

	fmt.Println("=== First Load (no config file) ===")
	_, err = config.LoadConfigWithPath(path)
	if err == nil {
		fmt.Println("Expected a first-run error, got none")
		os.Exit(1)
	}
	if !errors.Is(err, config.ErrFirstRun) {
		fmt.Printf("Expected first-run error, got: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Got first-run guidance: %v\n", err)

	if _, err := os.Stat(path); err != nil {
		fmt.Printf("Template was not written: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("=== Template Written ===")

	fmt.Println("\n=== Second Load (template on disk) ===")
	cfg, err := config.LoadConfigWithPath(path)
	if err != nil {
		// The template ships with empty credentials, so a validation
		// failure here would mean the template itself is malformed.
		fmt.Printf("Error loading template config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Config Loaded Successfully ===")
	fmt.Printf("Knowledge bases: %v\n", cfg.Names())
	fmt.Printf("Default: %s\n", cfg.Default)
	fmt.Printf("Settings: top_k=%d timeout=%ds\n", cfg.Settings.DefaultTopK, cfg.Settings.Timeout)

	fmt.Println("\n=== Test Complete ===")
}
