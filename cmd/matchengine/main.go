// Package main implements the matchengine CLI: the REST API server plus
// offline scoring, ranking and token tools.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/coderheist/rest.ai-sub000/internal/config"
	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	debugLogs bool
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "matchengine",
	Short: "Resume and job matching engine",
	Long:  "matchengine scores resumes against job postings, ranks candidates per job and serves the results to recruiters over a REST API.",

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ./matchengine.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit JSON logs and JSON command output")
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"log.debug":   "debug",
	"log.json":    "json",
	"server.port": "port",
}

// loadConfig reads the config file, binds the command's flags and decodes
// the result. A missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(config.AppName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, name := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	return config.Load(v)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
