// Package main runs a redisapp application or inspects its redis settings.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
)

var (
	env        string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "redisapp",
	Short: "Application host with named, pooled Redis clients",
	Long:  `redisapp boots the configured components (logging, telemetry, prometheus, http_server, redis) and serves the key/value demo API.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultEnv := os.Getenv("APP_ENV")
	if defaultEnv == "" {
		defaultEnv = consts.ENV_DEVELOPMENT
	}
	rootCmd.PersistentFlags().StringVar(&env, "env", defaultEnv, "running environment (development|test|production)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", consts.DEFAULT_CONFIG_PATH, "config file (yaml or json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
}
