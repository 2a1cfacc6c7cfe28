package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the search repeatedly on a schedule",
	Long: `Run the search repeatedly on a schedule.
Postings are delivered without confirmation, so every tick only reports postings
that earlier ticks have not seen.`,
	Run: func(_ *cobra.Command, _ []string) {
		watch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("schedule", "", `cron schedule, for example "@every 6h" or "0 9 * * 1-5"`)

	viper.BindPFlag("schedule", watchCmd.Flags().Lookup("schedule"))
}

func watch() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobmatch watcher", zap.String("version", version))

	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	a, err := newApplication(ctx, config, logger, nil)
	if err != nil {
		logger.Fatal("preparing the run", zap.Error(err))
	}
	defer a.Close()

	s, err := scheduler.New(ctx, config.Schedule, a.runOnce, logger)
	if err != nil {
		logger.Fatal("creating a scheduler", zap.Error(err))
	}

	s.Start()
	<-ctx.Done()

	logger.Info("shutting down, waiting for the current run")
	<-s.Stop().Done()
}

// runOnce runs the pipeline and logs instead of exiting on failure, so a
// broken tick does not stop the watcher.
func (a *application) runOnce(ctx context.Context) {
	result, err := a.pipeline.Run(ctx, a.request())
	a.writeMetrics()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info("run interrupted")
			return
		}
		a.logger.Error("run failed", zap.Error(err))
		return
	}
	logResult(a.logger, result)
}
