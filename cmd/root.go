// Package cmd provides the autoreload command line interface.
//
// Configuration is merged from several sources, highest priority first:
//
//  1. command line flags (--port, --watch, ...)
//  2. AUTORELOAD_<SECTION>_<OPTION> environment variables
//  3. the configuration file: --config, else AUTORELOAD_CONFIG_FILE, else
//     .autoreload.yml in the working directory
//  4. built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/autoreload/internal/config"
	"github.com/conneroisu/autoreload/internal/logging"
)

var cfgFile string

// rootCmd serves the document root when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "autoreload",
	Short: "Serve HTML with live reload",
	Long: `autoreload serves a directory over HTTP and reloads every open page when
a watched file changes. Optional build commands run before the reload.

Examples:
  autoreload                                  # serve . on :8888, watch .
  autoreload --watch src --command "make css" # rebuild on change, then reload
  autoreload --htdoc public --port 9000
  autoreload watch src                        # run commands on change, no server`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .autoreload.yml, can also use AUTORELOAD_CONFIG_FILE)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	flags.StringArrayP("watch", "w", nil, "file or directory to watch (repeatable, default .)")
	flags.StringArrayP("command", "c", nil, "shell command to run when a change is detected (repeatable)")
	flags.Duration("interval", config.DefaultPollInterval, "poll interval")
	flags.String("shell", "", "shell used to run commands (default \"sh -c\", \"cmd /C\" on Windows)")
	flags.Bool("serialize", true, "fold changes during a running build into one follow-up build")

	bindFlag("log.level", "log-level")
	bindFlag("log.format", "log-format")
	bindFlag("watch.paths", "watch")
	bindFlag("build.commands", "command")
	bindFlag("watch.interval", "interval")
	bindFlag("build.shell", "shell")
	bindFlag("build.serialize", "serialize")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding --%s: %v", flag, err))
	}
}

// initConfig points viper at the configuration file and enables environment
// overrides. A missing default file is fine; an unreadable explicit one is not.
func initConfig(cmd *cobra.Command, args []string) error {
	explicit := true
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv("AUTORELOAD_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv("AUTORELOAD_CONFIG_FILE"))
	default:
		explicit = false
		viper.SetConfigFile(config.DefaultFileName)
		viper.SetConfigType("yaml")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
	return nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// shutdownTimeout bounds how long a graceful shutdown may take.
const shutdownTimeout = 5 * time.Second
