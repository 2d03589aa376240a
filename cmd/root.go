/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/accounthub/apiserver/config"
	"github.com/accounthub/apiserver/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "accounthub",
	Short: "User account API server",
	Long: `accounthub serves sign-up, sign-in and profile management over HTTP.

	accounthub server
	accounthub migrate up
	accounthub events tail
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
