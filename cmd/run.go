package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/ai"
	"github.com/spigell/job-scanner/internal/ai/claude"
	"github.com/spigell/job-scanner/internal/ai/gemini"
	"github.com/spigell/job-scanner/internal/filtering"
	"github.com/spigell/job-scanner/internal/finn"
	"github.com/spigell/job-scanner/internal/logger"
	"github.com/spigell/job-scanner/internal/notify"
	"github.com/spigell/job-scanner/internal/pipeline"
	"github.com/spigell/job-scanner/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the configured search, score the listings and write the report",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("output-dir", "o", "", "directory for the report file")
	runCmd.Flags().IntP("max-jobs", "n", 0, "maximum number of listings to analyze")
	runCmd.Flags().Bool("no-email", false, "do not send the report by email even if enabled in the config")
	runCmd.Flags().BoolP("confirm-email", "i", false, "ask for confirmation before sending the report by email")
	runCmd.Flags().StringSlice("skip-filter", nil, "filter steps to skip (companies, title_keywords)")

	viper.BindPFlag("report.output-dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("scoring.max-jobs", runCmd.Flags().Lookup("max-jobs"))
	viper.BindPFlag("search.exclude.disabled", runCmd.Flags().Lookup("skip-filter"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-scanner", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	profile, err := resolveProfile(config)
	if err != nil {
		logger.Fatal("loading candidate profile", zap.Error(err),
			zap.String("hint", "set 'profile' or 'profile-file' in the configuration file"),
		)
	}

	scorer, err := newScorer(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the scorer", zap.Error(err))
	}

	notifier, err := newNotifier(cmd, config, logger)
	if err != nil {
		logger.Fatal("building the notifier", zap.Error(err))
	}

	site := finn.New(logger.Named("finn"), finn.Options{
		UserAgent:      config.Search.UserAgent,
		Timeout:        config.Search.Timeout,
		MaxListings:    config.Search.MaxListings,
		MaxPages:       config.Search.MaxPages,
		PageDelay:      config.Search.PageDelay,
		MaxDescription: config.Search.MaxDescription,
		KeepHTML:       config.Search.KeepHTML,
	})

	filters := buildFilters(config)
	for _, status := range filtering.Describe(filters) {
		logger.Debug("filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}

	runner, err := pipeline.New(pipeline.Config{
		SearchURL:    config.Search.URL,
		Profile:      profile,
		MinimumScore: config.Scoring.MinimumScore,
		MaxJobs:      config.Scoring.MaxJobs,
		ScoringDelay: config.Scoring.Delay,
		OutputDir:    config.Report.OutputDir,
		FileLayout:   config.Report.FileLayout,
		Filters: &filtering.Config{
			Companies:     config.Search.Exclude.Companies,
			TitleKeywords: config.Search.Exclude.TitleKeywords,
		},
	}, pipeline.Deps{
		Searcher: site,
		Details:  site,
		Scorer:   scorer,
		Notifier: notifier,
		Filters:  filters,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	result, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	logger.Info("finished",
		zap.String("report", result.Path),
		zap.Int("included", result.Stats.TotalIncluded),
		zap.Int("errors", len(result.Stats.Errors)),
		zap.Bool("limited", result.Stats.Limited),
	)
}

// buildFilters returns the default filter steps with the ones listed in
// search.exclude.disabled switched off.
func buildFilters(config *Config) []filtering.Filter {
	filters := filtering.Default()
	for _, name := range config.Search.Exclude.Disabled {
		filtering.DisableByName(filters, name, "disabled in config")
	}
	return filters
}

func newScorer(ctx context.Context, config *Config, log *zap.Logger) (ai.Scorer, error) {
	apiKey, err := resolveAPIKey(config)
	if err != nil {
		return nil, err
	}

	var generator ai.Generator
	switch config.AI.Provider {
	case providerGemini:
		generator, err = gemini.NewGenerator(ctx, gemini.Options{
			APIKey:  apiKey,
			Model:   config.AI.Gemini.Model,
			Timeout: config.AI.Gemini.Timeout,
		})
	case providerClaude, "":
		generator, err = claude.NewGenerator(claude.Options{
			APIKey:    apiKey,
			Model:     config.AI.Claude.Model,
			MaxTokens: config.AI.Claude.MaxTokens,
			Timeout:   config.AI.Claude.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}
	if err != nil {
		return nil, err
	}

	matcherLogger := logger.WithCommonFields(log, config.AI.Provider, generator.Model())

	return ai.NewMatcher(generator, matcherLogger, config.AI.MaxLogLength), nil
}

// newNotifier returns nil when email is disabled or skipped by flag.
func newNotifier(cmd *cobra.Command, config *Config, log *zap.Logger) (pipeline.Notifier, error) {
	if !config.Email.Enabled {
		return nil, nil
	}

	if skip, _ := cmd.Flags().GetBool("no-email"); skip {
		log.Info("email notification skipped", zap.String("reason", "no-email flag is set"))
		return nil, nil
	}

	password, err := resolveSMTPPassword(config)
	if err != nil {
		return nil, err
	}

	smtp, err := notify.NewSMTP(notify.Config{
		Enabled:       true,
		Server:        config.Email.SMTPServer,
		Port:          config.Email.SMTPPort,
		Username:      config.Email.Username,
		Password:      password,
		From:          config.Email.FromEmail,
		To:            config.Email.ToEmail,
		SubjectPrefix: config.Email.Subject,
		Timeout:       config.Email.Timeout,
	}, log.Named("notify"))
	if err != nil {
		return nil, err
	}

	if confirm, _ := cmd.Flags().GetBool("confirm-email"); confirm {
		return &confirmingNotifier{next: smtp, to: config.Email.ToEmail, confirm: promptConfirm, logger: log}, nil
	}

	return smtp, nil
}

// confirmingNotifier asks before every delivery.
type confirmingNotifier struct {
	next    pipeline.Notifier
	to      []string
	confirm func(label string) (bool, error)
	logger  *zap.Logger
}

func (c *confirmingNotifier) Send(ctx context.Context, rep *report.Report, path string) error {
	label := fmt.Sprintf("Send %s (%d listings) to %s", filepath.Base(path), rep.Included(), strings.Join(c.to, ", "))

	ok, err := c.confirm(label)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	if !ok {
		c.logger.Info("email notification skipped", zap.String("reason", "declined at prompt"))
		return nil
	}

	return c.next.Send(ctx, rep, path)
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
