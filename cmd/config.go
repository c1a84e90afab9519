package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/job-scanner/internal/report"
	"github.com/spigell/job-scanner/internal/secrets"
)

const (
	providerClaude = "claude"
	providerGemini = "gemini"
)

type Config struct {
	Search      SearchConfig  `mapstructure:"search"`
	Profile     string        `mapstructure:"profile" json:"-"`
	ProfileFile string        `mapstructure:"profile-file"`
	Scoring     ScoringConfig `mapstructure:"scoring"`
	AI          AIConfig      `mapstructure:"ai"`
	Report      ReportConfig  `mapstructure:"report"`
	Email       EmailConfig   `mapstructure:"email"`
}

type SearchConfig struct {
	URL            string        `mapstructure:"url" validate:"required,url"`
	MaxListings    int           `mapstructure:"max-listings" validate:"min=1,max=1000"`
	MaxPages       int           `mapstructure:"max-pages" validate:"min=1,max=10"`
	PageDelay      time.Duration `mapstructure:"page-delay" validate:"min=0s"`
	UserAgent      string        `mapstructure:"user-agent"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"min=1s"`
	MaxDescription int           `mapstructure:"max-description" validate:"min=100"`
	KeepHTML       bool          `mapstructure:"keep-html"`
	Exclude        ExcludeConfig `mapstructure:"exclude"`
}

type ExcludeConfig struct {
	Companies     []string `mapstructure:"companies"`
	TitleKeywords []string `mapstructure:"title-keywords"`
	// Disabled lists filter steps to skip, by name.
	Disabled      []string `mapstructure:"disabled" validate:"dive,oneof=companies title_keywords"`
}

type ScoringConfig struct {
	MinimumScore int           `mapstructure:"minimum-score" validate:"min=0,max=100"`
	MaxJobs      int           `mapstructure:"max-jobs" validate:"min=1"`
	Delay        time.Duration `mapstructure:"delay" validate:"min=0s"`
}

type AIConfig struct {
	Provider     string       `mapstructure:"provider" validate:"oneof=claude gemini"`
	MaxLogLength int          `mapstructure:"max-log-length" validate:"min=0"`
	Claude       ClaudeConfig `mapstructure:"claude"`
	Gemini       GeminiConfig `mapstructure:"gemini"`
}

type ClaudeConfig struct {
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int           `mapstructure:"max-tokens" validate:"min=1"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s"`
}

type GeminiConfig struct {
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s"`
}

type ReportConfig struct {
	OutputDir  string `mapstructure:"output-dir" validate:"required"`
	FileLayout string `mapstructure:"file-layout"`
}

type EmailConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SMTPServer   string        `mapstructure:"smtp-server" validate:"required_if=Enabled true"`
	SMTPPort     int           `mapstructure:"smtp-port" validate:"min=1,max=65535"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password" json:"-"`
	PasswordFile string        `mapstructure:"password-file"`
	FromEmail    string        `mapstructure:"from-email" validate:"required_if=Enabled true,omitempty,email"`
	ToEmail      []string      `mapstructure:"to-email" validate:"required_if=Enabled true,dive,email"`
	Subject      string        `mapstructure:"subject"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=1s"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.max-listings", 50)
	v.SetDefault("search.max-pages", 1)
	v.SetDefault("search.page-delay", "5s")
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.max-description", 4000)

	v.SetDefault("scoring.minimum-score", 30)
	v.SetDefault("scoring.max-jobs", 50)
	v.SetDefault("scoring.delay", "2s")

	v.SetDefault("ai.provider", providerClaude)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.claude.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.claude.max-tokens", 300)
	v.SetDefault("ai.claude.timeout", "60s")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.timeout", "60s")

	v.SetDefault("report.output-dir", ".")
	v.SetDefault("report.file-layout", report.DefaultFileLayout)

	v.SetDefault("email.smtp-port", 587)
	v.SetDefault("email.subject", "Job Match Report")
	v.SetDefault("email.timeout", "30s")
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"search.url":             "JOB_SCANNER_SEARCH_URL",
		"profile-file":           "JOB_SCANNER_PROFILE_FILE",
		"email.smtp-server":      "SMTP_SERVER",
		"email.username":         "SMTP_USERNAME",
		"email.from-email":       "FROM_EMAIL",
		"email.to-email":         "TO_EMAIL",
		"ai.claude.api-key-file": "ANTHROPIC_API_KEY_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}

	return nil
}

// getConfig decodes and validates the configuration held by v.
func getConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.Email.ToEmail = splitList(config.Email.ToEmail)
	config.Search.Exclude.Disabled = splitList(config.Search.Exclude.Disabled)

	if err := validator.New().Struct(&config); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("invalid config: %s", describeValidation(invalid))
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if strings.TrimSpace(config.Profile) == "" && strings.TrimSpace(config.ProfileFile) == "" {
		return nil, errors.New("invalid config: profile or profile-file is required")
	}

	return &config, nil
}

// splitList accepts both a list and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, addr := range strings.Split(value, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

func describeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func resolveProfile(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "candidate profile",
		Value: config.Profile,
		File:  config.ProfileFile,
	})
}

func resolveAPIKey(config *Config) (string, error) {
	switch config.AI.Provider {
	case providerGemini:
		return secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: config.AI.Gemini.APIKey,
			Env:   "GEMINI_API_KEY",
			File:  config.AI.Gemini.APIKeyFile,
		})
	default:
		return secrets.Load(secrets.Source{
			Name:  "anthropic api key",
			Value: config.AI.Claude.APIKey,
			Env:   "ANTHROPIC_API_KEY",
			File:  config.AI.Claude.APIKeyFile,
		})
	}
}

func resolveSMTPPassword(config *Config) (string, error) {
	if !config.Email.Enabled || config.Email.Username == "" {
		return "", nil
	}

	return secrets.Load(secrets.Source{
		Name:  "smtp password",
		Value: config.Email.Password,
		Env:   "SMTP_PASSWORD",
		File:  config.Email.PasswordFile,
	})
}
