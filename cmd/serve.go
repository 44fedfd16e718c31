package cmd

import (
	"storrent/internal/app"
	"storrent/internal/config"
	"storrent/internal/logging"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the files of a directory",
	Long: `Serve the regular files of a directory. This will:

1. Bind the configured host and port (5115 by default)
2. Accept any number of clients, each on its own connection
3. Answer list and download requests until interrupted

Subdirectories and files above the size ceiling are not listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext("serve")
		defer cancel()

		return app.NewServerApp(cfg, *logging.FromContext(ctx)).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.NewDefaultConfig().Server
	serveCmd.Flags().StringP("dir", "d", "", "Directory to serve (required)")
	serveCmd.Flags().String("host", d.Host, "Host to bind, empty for every interface")
	serveCmd.Flags().IntP("port", "p", d.Port, "Port to bind, 0 picks a free one")
	serveCmd.Flags().Int64("max-file-size", d.MaxFileSize, "Largest file size that is listed, in bytes")
	serveCmd.Flags().Bool("watch", d.Watch, "Watch the directory and warn when ids go stale")

	serveCmd.Flags().Duration("idle-timeout", d.IdleTimeout, "Abort clients idle for this long, 0 disables")
	serveCmd.Flags().Duration("stats-interval", d.StatsInterval, "Log server stats at this interval, 0 disables")
}
