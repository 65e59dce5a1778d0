package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/autoreload/internal/config"
	"github.com/conneroisu/autoreload/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the document root with live reload (default command)",
	Long: `Serve the document root over HTTP. HTML pages get a small script that
connects to /ws and reloads the page when a watched file changes.

Examples:
  autoreload serve
  autoreload serve --htdoc public --watch public --watch src
  autoreload serve --command "npm run build" --port 3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addServeFlags(rootCmd.Flags())
	addServeFlags(serveCmd.Flags())
}

// addServeFlags declares the server flags. The root command and serve both
// carry them; the ones of the command actually run are bound to viper.
func addServeFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", config.DefaultPort, "port to listen on")
	flags.String("host", config.DefaultHost, "host to bind to")
	flags.String("htdoc", ".", "root directory of HTML documents")
	flags.String("assets", "", "directory served under /assets/ (default: built-in assets)")
}

func bindServeFlags(flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"server.port": "port",
		"server.host": "host",
		"docs.root":   "htdoc",
		"docs.assets": "assets",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %v; use --watch to add watch targets", args)
	}
	if err := bindServeFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() {
		served <- srv.Start(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", cfg.Docs.Root, cfg.Server.Addr())

	select {
	case err := <-served:
		// Start only returns early when it could not listen.
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "bye")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, err, "error during server shutdown")
	}
	return <-served
}
