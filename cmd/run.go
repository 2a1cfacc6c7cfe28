package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/delivery"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/pipeline"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/store"
)

const (
	PromptDeliver             = "Deliver"
	PromptNo                  = "No"
	PromptReportByCompanies   = "Report by companies"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all postings to exclude file"
)

var errDeclined = errors.New("delivery declined")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, rank and deliver unseen postings once",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before delivering postings")
	runCmd.Flags().Bool("dry-run", false, "do not remember delivered postings")
	runCmd.Flags().String("directive", "", "free-text directive to narrow the results")
	runCmd.Flags().Float64("min-score", 0, "minimum match score in percent")
	runCmd.Flags().Int("max-results", 0, "maximum number of delivered postings")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")

	viper.BindPFlag("directive.text", runCmd.Flags().Lookup("directive"))
	viper.BindPFlag("matching.min-score", runCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("max-results", runCmd.Flags().Lookup("max-results"))
	viper.BindPFlag("search.exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		logger.Info("dry run, seen postings will not be saved")
		config.Store.Type = store.TypeNop
	}

	var wrap wrapDeliverer
	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); !autoApprove {
		wrap = func(next delivery.Deliverer) delivery.Deliverer {
			return newConfirm(next, config.Search.ExcludeFile, logger)
		}
	}

	a, err := newApplication(ctx, config, logger, wrap)
	if err != nil {
		logger.Fatal("preparing the run", zap.Error(err))
	}
	defer a.Close()

	result, err := a.pipeline.Run(ctx, a.request())
	a.writeMetrics()
	if err != nil {
		if errors.Is(err, errDeclined) {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
		logger.Fatal("run failed", zap.Error(err))
	}

	logResult(logger, result)
}

// confirm asks the user what to do with the postings before handing them to
// the next deliverer.
type confirm struct {
	next        delivery.Deliverer
	excludeFile string
	logger      *zap.Logger
	// choose returns the selected item.
	choose func(items []string) (string, error)
}

func newConfirm(next delivery.Deliverer, excludeFile string, logger *zap.Logger) *confirm {
	return &confirm{
		next:        next,
		excludeFile: excludeFile,
		logger:      logger,
		choose: func(items []string) (string, error) {
			prompt := promptui.Select{
				Label: "Procced?",
				Items: items,
			}
			_, action, err := prompt.Run()
			return action, err
		},
	}
}

func (c *confirm) Name() string {
	return "confirm/" + c.next.Name()
}

func (c *confirm) Deliver(ctx context.Context, r delivery.Report) error {
	if r.Len() == 0 {
		return c.next.Deliver(ctx, r)
	}

	for {
		items := []string{PromptDeliver, PromptNo, PromptReportByCompanies, PromptPostingsToFile}
		if c.excludeFile != "" && r.Len() != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		action, err := c.choose(items)
		if err != nil {
			return err
		}

		c.logger.Info("current list of postings", zap.Int("count", r.Len()))

		switch action {
		case PromptDeliver:
			return c.next.Deliver(ctx, r)
		case PromptNo:
			return errDeclined
		case PromptReportByCompanies:
			pretty, _ := json.MarshalIndent(delivery.ReportByCompany(r.Postings), "", "  ")
			c.logger.Info(string(pretty), zap.Int("postings count", r.Len()))
		case PromptPostingsToFile:
			filename, err := delivery.DumpToFile("", r)
			if err != nil {
				return fmt.Errorf("dump results to file: %w", err)
			}
			c.logger.Info("dumping result to file", zap.String("filename", filename))
		case PromptAppendToExcludeFile:
			remaining, err := appendToExcludeFile(c.excludeFile, r.Postings)
			if err != nil {
				return err
			}
			c.logger.Info("appended to exclude file", zap.String("filename", c.excludeFile))
			r.Postings = remaining
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

// appendToExcludeFile records the postings in the exclude file and returns
// the ones still not excluded.
func appendToExcludeFile(path string, postings []posting.Scored) ([]posting.Scored, error) {
	excluded, err := filtering.ReadExcludeFile(path)
	if err != nil {
		return nil, err
	}

	excluded.Append(filtering.ToExcluded(postings))

	if err := excluded.ToFile(path); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	for _, id := range excluded.IDs() {
		ids[id] = struct{}{}
	}

	remaining := make([]posting.Scored, 0, len(postings))
	for _, p := range postings {
		if _, ok := ids[p.ID]; ok {
			continue
		}
		remaining = append(remaining, p)
	}
	return remaining, nil
}

func logResult(logger *zap.Logger, result *pipeline.Result) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("state", string(result.State)),
		zap.Int("delivered", len(result.Postings)),
		zap.Int("newly_seen", result.NewlySeen),
		zap.Int("failures", result.Failures),
		zap.Duration("took", result.Duration),
	}
	if result.AbortReason != "" {
		fields = append(fields, zap.String("reason", result.AbortReason))
	}
	logger.Info("run finished", fields...)
}
