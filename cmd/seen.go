package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/store"
)

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Inspect or reset the postings remembered for a session",
}

var seenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the ids of seen postings",
	Run: func(cmd *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, s store.SeenStore, config *Config, logger *zap.Logger) error {
			seen, err := s.LoadSeen(ctx, config.Session)
			if err != nil {
				return err
			}

			logger.Info("seen postings", zap.String("session", config.Session), zap.Int("count", seen.Len()))
			for _, id := range seen.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var seenResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every seen posting of the session",
	Run: func(cmd *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, s store.SeenStore, config *Config, logger *zap.Logger) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				prompt := promptui.Prompt{
					Label:     fmt.Sprintf("Forget seen postings of session %q", config.Session),
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					logger.Info("exiting", zap.String("reason", "got no from prompt"))
					return nil
				}
			}

			if err := s.DeleteSeen(ctx, config.Session); err != nil {
				return err
			}
			logger.Info("seen postings removed", zap.String("session", config.Session))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(seenCmd)
	seenCmd.AddCommand(seenShowCmd, seenResetCmd)

	seenResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func withStore(fn func(context.Context, store.SeenStore, *Config, *zap.Logger) error) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	s, err := store.New(ctx, config.Store)
	if err != nil {
		logger.Fatal("opening store", zap.String("type", config.Store.Type), zap.Error(err))
	}
	defer s.Close()

	if err := fn(ctx, s, config, logger); err != nil {
		logger.Fatal("seen postings", zap.Error(err))
	}
}
