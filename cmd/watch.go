package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/conneroisu/autoreload/internal/build"
	"github.com/conneroisu/autoreload/internal/config"
	"github.com/conneroisu/autoreload/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [path...]",
	Aliases: []string{"w"},
	Short:   "Run the build commands on every change without serving",
	Long: `Watch files and run the configured commands whenever something changes,
without starting the HTTP server. Positional paths replace the configured
watch targets.

Examples:
  autoreload watch src --command "make"
  autoreload watch --command "go generate ./..." --interval 1s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.Watch.Paths = args
	}
	logger := newLogger(cfg)

	out := cmd.OutOrStdout()
	runner := build.NewRunner(cfg.Build, func() {
		fmt.Fprintln(out, "build cycle finished")
	}, logger)

	set := watcher.NewWatchSet(logger)
	for _, path := range cfg.Watch.Paths {
		set.Watch(path)
	}
	if set.Len() == 0 {
		return fmt.Errorf("nothing to watch in %v", cfg.Watch.Paths)
	}

	dispatcher := watcher.NewDispatcher(logger)
	dispatcher.AddHook(runner.Trigger)

	poller := watcher.NewPoller(set, dispatcher, cfg.Watch.Interval, logger)
	poller.Observe(func(events []fsnotify.Event) {
		for _, event := range events {
			fmt.Fprintf(out, "%s %s\n", event.Op, event.Name)
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)
	fmt.Fprintf(out, "Watching %d paths, press Ctrl+C to stop\n", set.Len())

	<-ctx.Done()
	poller.Wait()
	runner.Stop()
	logger.Info(context.Background(), "bye")
	return nil
}
