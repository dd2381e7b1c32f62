package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // CI runners and scratch images may lack zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/umami-report/internal/umami"
	"github.com/pfrederiksen/umami-report/internal/website"
)

// Environment variable names.
const (
	EnvUmamiAPIURL       = "UMAMI_API_URL"
	EnvUmamiWebsiteID    = "UMAMI_WEBSITE_ID"
	EnvUmamiAPIToken     = "UMAMI_API_TOKEN"
	EnvUmamiAPIKey       = "UMAMI_API_KEY"
	EnvUmamiUser         = "UMAMI_USER"
	EnvUmamiPassword     = "UMAMI_PASSWORD"
	EnvUmamiStartAt      = "UMAMI_START_AT"
	EnvUmamiEndAt        = "UMAMI_END_AT"
	EnvUmamiTimeout      = "UMAMI_TIMEOUT"
	EnvUmamiConcurrency  = "UMAMI_CONCURRENCY"
	EnvTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID    = "TELEGRAM_CHAT_ID"
	EnvTelegramAPIURL    = "TELEGRAM_API_URL"
	EnvReportTimezone    = "REPORT_TIMEZONE"
	EnvReportTitle       = "REPORT_TITLE"
	EnvPushgatewayURL    = "PUSHGATEWAY_URL"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	DefaultEnvFile       = ".env"
	DefaultUmamiUser     = "admin"
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	missingCredentialVar = EnvUmamiAPIToken + " or " + EnvUmamiPassword
)

// Config is the fully resolved configuration for one report run.
type Config struct {
	Umami          UmamiConfig    `yaml:"umami"`
	Telegram       TelegramConfig `yaml:"telegram"`
	Report         ReportConfig   `yaml:"report"`
	Log            LogConfig      `yaml:"log"`
	PushgatewayURL string         `yaml:"pushgateway_url"`
}

// UmamiConfig selects the instance, credentials, sites and window.
type UmamiConfig struct {
	APIURL      string         `yaml:"api_url"`
	APIToken    string         `yaml:"api_token"`
	APIKey      string         `yaml:"api_key"`
	Username    string         `yaml:"username"`
	Password    string         `yaml:"password"`
	Sites       []website.Site `yaml:"sites"`
	StartAt     string         `yaml:"start_at"`
	EndAt       string         `yaml:"end_at"`
	Timeout     time.Duration  `yaml:"timeout"`
	Concurrency int            `yaml:"concurrency"`
}

// TelegramConfig selects the bot and destination chat.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

// ReportConfig controls digest rendering and delivery.
type ReportConfig struct {
	Title        string `yaml:"title"`
	Timezone     string `yaml:"timezone"`
	ResolveNames bool   `yaml:"resolve_names"`
	DryRun       bool   `yaml:"dry_run"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Umami: UmamiConfig{
			Username:    DefaultUmamiUser,
			Timeout:     umami.DefaultTimeout,
			Concurrency: umami.DefaultConcurrency,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// LoadOptions says where configuration comes from.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is an optional dotenv file. A missing DefaultEnvFile is ignored.
	EnvFile string
	// LookupEnv reads the process environment; nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves configuration from defaults, the YAML file, the dotenv file
// and the environment, later sources overriding earlier ones. Values in the
// process environment win over the dotenv file.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigFile != "" {
		if err := cfg.loadYAML(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	fileEnv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := website.Validate(c.Umami.Sites); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	env, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return env, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvUmamiAPIURL, &c.Umami.APIURL)
	str(EnvUmamiAPIToken, &c.Umami.APIToken)
	str(EnvUmamiAPIKey, &c.Umami.APIKey)
	str(EnvUmamiUser, &c.Umami.Username)
	str(EnvUmamiPassword, &c.Umami.Password)
	str(EnvUmamiStartAt, &c.Umami.StartAt)
	str(EnvUmamiEndAt, &c.Umami.EndAt)
	str(EnvTelegramBotToken, &c.Telegram.BotToken)
	str(EnvTelegramChatID, &c.Telegram.ChatID)
	str(EnvTelegramAPIURL, &c.Telegram.APIURL)
	str(EnvReportTimezone, &c.Report.Timezone)
	str(EnvReportTitle, &c.Report.Title)
	str(EnvPushgatewayURL, &c.PushgatewayURL)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)

	if v, ok := lookup(EnvUmamiWebsiteID); ok && strings.TrimSpace(v) != "" {
		if err := c.SetSites(v); err != nil {
			return fmt.Errorf("%s: %w", EnvUmamiWebsiteID, err)
		}
	}

	if v, ok := lookup(EnvUmamiTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUmamiTimeout, err)
		}
		c.Umami.Timeout = d
	}

	if v, ok := lookup(EnvUmamiConcurrency); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvUmamiConcurrency, v)
		}
		c.Umami.Concurrency = n
	}

	return nil
}

// SetSites replaces the site list with one parsed from "id:label,id" form.
func (c *Config) SetSites(list string) error {
	sites, err := website.Parse(list)
	if err != nil {
		return err
	}
	c.Umami.Sites = sites
	return nil
}

// ParseDuration accepts a Go duration ("45s", "1m") or a bare number of
// seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// MissingError lists every required setting that was not provided.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Validate checks that the configuration is complete. Telegram settings are
// only required when the digest will actually be sent.
func (c *Config) Validate() error {
	var missing []string

	if c.Umami.APIURL == "" {
		missing = append(missing, EnvUmamiAPIURL)
	}
	if len(c.Umami.Sites) == 0 {
		missing = append(missing, EnvUmamiWebsiteID)
	}
	if !c.Report.DryRun {
		if c.Telegram.BotToken == "" {
			missing = append(missing, EnvTelegramBotToken)
		}
		if c.Telegram.ChatID == "" {
			missing = append(missing, EnvTelegramChatID)
		}
	}
	if c.Credentials().Method() == "" {
		missing = append(missing, missingCredentialVar)
	}

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}

	if c.Umami.Timeout <= 0 {
		return fmt.Errorf("umami timeout must be positive, got %s", c.Umami.Timeout)
	}
	if c.Umami.Concurrency <= 0 {
		return fmt.Errorf("umami concurrency must be positive, got %d", c.Umami.Concurrency)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (must be 'json' or 'console')", c.Log.Format)
	}

	return nil
}

// Finalize applies defaults that depend on other settings. An API key with
// no URL targets Umami Cloud.
func (c *Config) Finalize() {
	if c.Umami.APIURL == "" && c.Umami.APIKey != "" && c.Umami.APIToken == "" {
		c.Umami.APIURL = umami.CloudBaseURL
	}
	if c.Umami.Username == "" {
		c.Umami.Username = DefaultUmamiUser
	}
}

// Credentials returns the Umami credentials.
func (c *Config) Credentials() umami.Credentials {
	return umami.Credentials{
		Token:    c.Umami.APIToken,
		APIKey:   c.Umami.APIKey,
		Username: c.Umami.Username,
		Password: c.Umami.Password,
	}
}

// Location returns the report time zone, or nil for the digest default.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Report.Timezone)
	if tz == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", tz, err)
	}
	return loc, nil
}
