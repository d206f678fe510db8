package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"headless-pro/pkg/config"
)

const serviceName = "content-api"

// 退出码
const (
	exitSuccess = 0
	exitFailure = 1
)

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Headless content API: search, related and popular content, field schemas, contact form",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reindexCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
