package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"batchwatch/internal/daemon"
	"batchwatch/internal/db"
	"batchwatch/internal/logger"
	"batchwatch/internal/repository"
	"batchwatch/internal/watcher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchTimeout   time.Duration
	watchMirror    string
	watchNoHistory bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths or patterns...]",
	Short: "Watch the given targets (or the configured ones) and deliver batches",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if len(args) > 0 {
		cfg.Targets = args
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = watchTimeout
	}
	if watchMirror != "" {
		cfg.MirrorDst = watchMirror
	}

	var repo *repository.BatchRepository
	if !watchNoHistory {
		if err := db.Init(cfg.DBPath); err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()
		repo = repository.NewBatchRepository()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := daemon.New(ctx, cfg, watcher.NewSource(), repo)
	if err != nil {
		return err
	}
	d.Start()

	logger.Log.Info("batchwatch daemon started",
		zap.Strings("targets", cfg.Targets),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("port", cfg.DaemonPort))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-d.Server().StopCh():
		logger.Log.Info("stop requested via API")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}

func init() {
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 100*time.Millisecond, "debounce window")
	watchCmd.Flags().StringVar(&watchMirror, "mirror", "", "mirror the first target into this directory")
	watchCmd.Flags().BoolVar(&watchNoHistory, "no-history", false, "do not store batches in the database")
	rootCmd.AddCommand(watchCmd)
}
