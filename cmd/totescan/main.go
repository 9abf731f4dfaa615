package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/totescan/internal/client"
	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
)

var (
	// Global flags
	cfgFile    string
	baseURL    string
	logLevel   string
	jsonOutput bool
	noColor    bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "totescan",
	Short: "Look up tote contents by barcode",
	Long: `totescan scans or types a tote identifier and shows what is inside.

Lookups go through input validation, a scan rate limit, a shared response
cache and automatic retries for transient backend failures.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Config file (default: ./totescan.yaml or ~/.config/totescan/totescan.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"Tote API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}

	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
	}
	if noColor {
		cfg.Log.Color = false
		disableColor()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	if used := loader.ConfigFileUsed(); used != "" {
		logger.WithField("path", used).Debug("Loaded config file")
	}

	if cmd.Annotations["offline"] == "true" {
		return nil
	}

	apiClient, err = client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func main() {
	err := rootCmd.Execute()

	// Close even when the command failed so recent barcodes and the sqlite
	// handle are flushed.
	if apiClient != nil {
		if cerr := apiClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	if err != nil {
		printError("Error: %v", err)
		os.Exit(1)
	}
}
