package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/internal/api"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the application",
	RunE: func(cmd *cobra.Command, args []string) error {
		api.Register()
		app := redisapp.NewApp(env, configPath)
		app.SetShutdownTimeout(shutdownTimeout)
		return app.Run()
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown bound")
}
