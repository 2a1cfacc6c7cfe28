package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobmatch/internal/delivery"
	"github.com/spigell/jobmatch/internal/source"
	"github.com/spigell/jobmatch/internal/store"
)

const (
	app       = "jobmatch"
	envPrefix = "JOBMATCH"
)

type Config struct {
	Session     string          `mapstructure:"session"`
	Search      source.Query    `mapstructure:"search"`
	Profile     ProfileConfig   `mapstructure:"profile"`
	Postings    PostingsConfig  `mapstructure:"postings"`
	Matching    MatchingConfig  `mapstructure:"matching"`
	Directive   DirectiveConfig `mapstructure:"directive"`
	MaxResults  int             `mapstructure:"max-results"`
	Vocabulary  string          `mapstructure:"vocabulary"`
	AI          *AIConfig       `mapstructure:"ai"`
	Store       store.Config    `mapstructure:"store"`
	Delivery    DeliveryConfig  `mapstructure:"delivery"`
	MetricsFile string          `mapstructure:"metrics-file"`
	Schedule    string          `mapstructure:"schedule"`
}

// ProfileConfig points at a profile file or carries the profile inline.
type ProfileConfig struct {
	Path            string   `mapstructure:"path"`
	Text            string   `mapstructure:"text"`
	Skills          []string `mapstructure:"skills"`
	ExperienceYears *int     `mapstructure:"experience-years"`
}

type PostingsConfig struct {
	// Source is "file" or "jsearch".
	Source     string `mapstructure:"source"`
	Path       string `mapstructure:"path"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	MaxPages   int    `mapstructure:"max-pages"`
	UserAgent  string `mapstructure:"user-agent"`
}

// MatchingConfig tunes scoring. Unset bonus and year fields keep their
// defaults; experience-bonus: 0 disables the seniority adjustment.
type MatchingConfig struct {
	MinScore        float64  `mapstructure:"min-score"`
	SemanticWeight  float64  `mapstructure:"semantic-weight"`
	SkillWeight     float64  `mapstructure:"skill-weight"`
	ExperienceBonus *float64 `mapstructure:"experience-bonus"`
	SeniorYears     *int     `mapstructure:"senior-years"`
	JuniorYears     *int     `mapstructure:"junior-years"`
}

type DirectiveConfig struct {
	Text           string  `mapstructure:"text"`
	Cutoff         float64 `mapstructure:"cutoff"`
	SemanticWeight float64 `mapstructure:"semantic-weight"`
	KeywordWeight  float64 `mapstructure:"keyword-weight"`
}

type AIConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	MaxRetries int           `mapstructure:"max-retries"`
	BaseURL    string        `mapstructure:"base-url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DeliveryConfig struct {
	Log     bool        `mapstructure:"log"`
	CSVDir  string      `mapstructure:"csv-dir"`
	JSONDir string      `mapstructure:"json-dir"`
	Email   EmailConfig `mapstructure:"email"`
}

// EmailConfig enables the email deliverer when at least one recipient is set.
type EmailConfig struct {
	To           []string `mapstructure:"to"`
	From         string   `mapstructure:"from"`
	Host         string   `mapstructure:"smtp-host"`
	Port         int      `mapstructure:"smtp-port"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password" json:"-"`
	PasswordFile string   `mapstructure:"password-file"`
	Subject      string   `mapstructure:"subject"`
	AttachCSV    bool     `mapstructure:"attach-csv"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "jobmatch ranks job postings against your profile and remembers what you have already seen",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("session", "s", "", "tracking session for seen postings")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("session", store.DefaultSession)
	viper.SetDefault("search.keywords", []string{})
	viper.SetDefault("search.location", "")
	viper.SetDefault("search.posted-within-days", 0)
	viper.SetDefault("search.exclude-companies", []string{})
	viper.SetDefault("search.exclude-file", "")
	viper.SetDefault("profile.path", "profile.yaml")
	viper.SetDefault("postings.source", "file")
	viper.SetDefault("postings.path", "postings.json")
	viper.SetDefault("postings.api-key", "")
	viper.SetDefault("postings.api-key-file", "")
	viper.SetDefault("postings.max-pages", 1)
	viper.SetDefault("matching.min-score", 40.0)
	viper.SetDefault("directive.text", "")
	viper.SetDefault("directive.cutoff", 0.3)
	viper.SetDefault("max-results", 20)
	viper.SetDefault("vocabulary", "")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.api-key", "")
	viper.SetDefault("ai.api-key-file", "")
	viper.SetDefault("ai.max-retries", 3)
	viper.SetDefault("ai.base-url", "")
	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("store.type", store.TypeSQLite)
	viper.SetDefault("store.path", "jobmatch.db")
	viper.SetDefault("store.url", "")
	viper.SetDefault("delivery.log", true)
	viper.SetDefault("delivery.csv-dir", "")
	viper.SetDefault("delivery.json-dir", "")
	viper.SetDefault("delivery.email.to", []string{})
	viper.SetDefault("delivery.email.from", "")
	viper.SetDefault("delivery.email.smtp-host", "")
	viper.SetDefault("delivery.email.smtp-port", delivery.DefaultSMTPPort)
	viper.SetDefault("delivery.email.username", "")
	viper.SetDefault("delivery.email.password", "")
	viper.SetDefault("delivery.email.password-file", "")
	viper.SetDefault("delivery.email.subject", delivery.DefaultEmailSubject)
	viper.SetDefault("delivery.email.attach-csv", true)
	viper.SetDefault("metrics-file", "")
	viper.SetDefault("schedule", "@every 6h")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// An explicit config must parse; the default one may be absent when
	// everything comes from the environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
