package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MediaSentiment/internal/calculator"
	"MediaSentiment/internal/model"
)

// SeriesConfig names one upstream series and the panel column it fills.
type SeriesConfig struct {
	ID        string          `yaml:"id" validate:"required"`
	Column    string          `yaml:"column" validate:"required"`
	Frequency model.Frequency `yaml:"frequency" default:"q" validate:"oneof=d w m q"`
}

// Series converts the entry to its model form.
func (s SeriesConfig) Series() model.Series {
	return model.Series{ID: s.ID, Column: s.Column, Frequency: s.Frequency}
}

// Config holds all application configuration.
type Config struct {
	DataDir string `yaml:"data_dir" default:"data" validate:"required"`

	FRED struct {
		BaseURL           string `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"required,url"`
		APIKey            string `yaml:"api_key"`
		KeyFile           string `yaml:"key_file" default:"FRED_API.txt"`
		RequestsPerMinute int    `yaml:"requests_per_minute" default:"120" validate:"gte=0"`
	} `yaml:"fred"`

	Sentiment struct {
		URL         string `yaml:"url" default:"https://www.frbsf.org/wp-content/uploads/news_sentiment_data.xlsx"`
		File        string `yaml:"file" default:"news_sentiment_data.xlsx" validate:"required"`
		Sheet       string `yaml:"sheet" default:"Data" validate:"required"`
		DateColumn  string `yaml:"date_column" default:"date" validate:"required"`
		ValueColumn string `yaml:"value_column" default:"News Sentiment" validate:"required"`
		Column      string `yaml:"column" default:"sentiment" validate:"required"`
	} `yaml:"sentiment"`

	Stock struct {
		SeriesID   string `yaml:"series_id" default:"DJIA" validate:"required"`
		Column     string `yaml:"column" default:"stock_close" validate:"required"`
		LedgerFile string `yaml:"ledger_file" default:"DJIA_close.csv" validate:"required"`
		Source     string `yaml:"source" default:"fred" validate:"oneof=fred yahoo"`
	} `yaml:"stock"`

	Macro []SeriesConfig `yaml:"macro" validate:"dive"`

	Transform struct {
		ZScore    []string `yaml:"zscore" default:"[\"sentiment\"]"`
		PctChange []string `yaml:"pct_change" default:"[\"gdp\",\"cpi\",\"stock_close\"]"`
		Lag       int      `yaml:"lag" default:"4" validate:"gte=1"`
	} `yaml:"transform"`

	Model struct {
		Endog     string      `yaml:"endog" default:"z_sentiment" validate:"required"`
		Exog      []string    `yaml:"exog" default:"[\"ppchg_gdp\",\"unemployment\",\"ppchg_cpi\",\"ppchg_stock_close\"]"`
		Order     model.Order `yaml:"order"`
		TrainFrom int         `yaml:"train_from" default:"1988" validate:"gte=1800"`
		TrainTo   int         `yaml:"train_to" default:"2017" validate:"gte=1800"`
	} `yaml:"model"`

	Output struct {
		File    string   `yaml:"file" default:"forecast_data.csv" validate:"required"`
		Exclude []string `yaml:"exclude" default:"[\"sentiment\",\"stock_close\",\"gdp\",\"cpi\"]"`
	} `yaml:"output"`

	Sentinels []string `yaml:"sentinels" default:"[\".\"]"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/forecast_runs.db"`
	} `yaml:"database"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Schedule struct {
		Cron string `yaml:"cron" default:"0 0 7 * * 1-5" validate:"required"`
	} `yaml:"schedule"`

	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
		Job            string `yaml:"job" default:"media_sentiment_forecast"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`

	Proxy string `yaml:"proxy"`
}

// SetDefaults fills the values that struct tags cannot express.
func (c *Config) SetDefaults() {
	if len(c.Macro) == 0 {
		c.Macro = []SeriesConfig{
			{ID: "UNRATE", Column: "unemployment", Frequency: model.Quarterly},
			{ID: "GDP", Column: "gdp", Frequency: model.Quarterly},
			{ID: "CPIAUCSL", Column: "cpi", Frequency: model.Quarterly},
			{ID: "A067RO1Q156NBEA", Column: "dpi", Frequency: model.Quarterly},
		}
	}
}

// DefaultOrder is used when the config file has no model.order key. An
// explicit all-zero order is a plain regression and is kept.
var DefaultOrder = model.Order{P: 1, D: 0, Q: 4}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if !hasOrder(data) {
		cfg.Model.Order = DefaultOrder
	}

	applyEnv(cfg)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

func hasOrder(data []byte) bool {
	var probe struct {
		Model struct {
			Order *model.Order `yaml:"order"`
		} `yaml:"model"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Model.Order != nil
}

func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set("FRED_API_KEY", &cfg.FRED.APIKey)
	set("DATA_DIR", &cfg.DataDir)
	set("SQLITE_PATH", &cfg.Database.SQLitePath)
	set("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	set("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	set("HTTPS_PROXY", &cfg.Proxy)
	set("CRON_SCHEDULE", &cfg.Schedule.Cron)
	set("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	set("LOG_LEVEL", &cfg.Log.Level)
	if v := os.Getenv("FRED_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FRED.RequestsPerMinute = n
		}
	}
}

// Validate checks struct constraints and the relations between fields.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Model.TrainFrom >= c.Model.TrainTo {
		return fmt.Errorf("model.train_from (%d) must be before model.train_to (%d)", c.Model.TrainFrom, c.Model.TrainTo)
	}
	o := c.Model.Order
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("model.order %s must be non-negative", o)
	}

	owners := map[string]string{}
	claim := func(column, owner string) error {
		if prev, ok := owners[column]; ok {
			return fmt.Errorf("column %q declared by both %s and %s", column, prev, owner)
		}
		owners[column] = owner
		return nil
	}
	if err := claim(c.Sentiment.Column, "sentiment"); err != nil {
		return err
	}
	if err := claim(c.Stock.Column, c.Stock.SeriesID); err != nil {
		return err
	}
	for _, m := range c.Macro {
		if err := claim(m.Column, m.ID); err != nil {
			return err
		}
	}

	derivable := map[string]bool{}
	for col := range owners {
		derivable[col] = true
	}
	for _, col := range c.Transform.ZScore {
		if !derivable[col] {
			return fmt.Errorf("transform.zscore: unknown column %q", col)
		}
	}
	for _, col := range c.Transform.PctChange {
		if !derivable[col] {
			return fmt.Errorf("transform.pct_change: unknown column %q", col)
		}
	}
	for _, col := range c.Transform.ZScore {
		derivable[calculator.ZScoreColumn(col)] = true
	}
	for _, col := range c.Transform.PctChange {
		derivable[calculator.PctChangeColumn(col)] = true
	}
	for _, col := range append([]string{c.Model.Endog}, c.Model.Exog...) {
		if !derivable[col] {
			return fmt.Errorf("model: column %q is neither fetched nor derived", col)
		}
	}
	return c.validateExogNames()
}

// validateExogNames rejects exog names that would collide with each other or
// with the model's own coefficient names when a run is recorded.
func (c *Config) validateExogNames() error {
	seen := map[string]bool{c.Model.Endog: true}
	for _, col := range c.Model.Exog {
		if seen[col] {
			return fmt.Errorf("model.exog: column %q listed twice or equal to endog", col)
		}
		seen[col] = true
		if col == "const" || col == "sigma2" || strings.HasPrefix(col, "ar.L") || strings.HasPrefix(col, "ma.L") {
			return fmt.Errorf("model.exog: column %q clashes with a coefficient name", col)
		}
	}
	return nil
}

// LoadCredential reads the FRED key from the data directory unless one was
// configured directly.
func (c *Config) LoadCredential() error {
	if c.FRED.APIKey != "" {
		return nil
	}
	path := c.DataPath(c.FRED.KeyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read FRED credential: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return fmt.Errorf("FRED credential file %s is empty", path)
	}
	c.FRED.APIKey = key
	return nil
}

// DataPath resolves a file name relative to the data directory.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
