package main

import (
	"os"
	"strings"

	"github.com/jrsteele09/go-studio-gateway/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var BuildVersion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "studio-gateway",
	Short:         "Content Studio auth gateway",
	Long:          "Auth gateway in front of the Content Studio API and app shell.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file. Environment variables take precedence over it.")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newTokenCommand())
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config when given and sets up logging from it.
func loadConfig() (config.Config, error) {
	cfg := config.New()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger
}
