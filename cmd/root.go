package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storrent/internal/config"
	"storrent/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
	logger  zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storrent",
	Short: "storrent - Simple Torrent file server and client",
	Long: `storrent serves the regular files of a directory over a plain TCP line
protocol and downloads them from another machine.

Usage:
  Serve a directory: storrent serve --dir /path/to/share
  List its files:    storrent list --addr host:5115
  Download a file:   storrent get --addr host:5115 --id 0 --dst ./file

Every flag can also be set in the config file or through STORRENT_
prefixed environment variables, e.g. STORRENT_SERVER_PORT.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		bindFlags(cmd)

		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		logCfg := logging.DefaultConfig()
		logCfg.Level = level
		logCfg.Format = cfg.Logging.Format
		logger = logging.New(logCfg)

		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("file", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.storrent.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")

	// Set up viper environment variable support
	config.ConfigureEnv(viper.GetViper())
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not find home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".storrent" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".storrent")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals and
// carries the command logger
func createContext(component string) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx = logging.WithContext(ctx, logger)
	return logging.WithComponent(ctx, component), cancel
}

// flagKeys maps flag names to configuration keys. Several commands share
// flag names, so binding happens for the running command only.
var flagKeys = map[string]string{
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"dir":            "server.dir",
	"host":           "server.host",
	"port":           "server.port",
	"max-file-size":  "server.max_file_size",
	"watch":          "server.watch",
	"idle-timeout":   "server.idle_timeout",
	"stats-interval": "server.stats_interval",
	"addr":           "client.addr",
	"dial-timeout":   "client.dial_timeout",
}

// bindFlags binds the flags of cmd to viper for config file and environment
// variable support
func bindFlags(cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
