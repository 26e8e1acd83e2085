package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Datasource struct {
		Driver       string `mapstructure:"driver"`
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		Schema       string `mapstructure:"schema"`
		SSLMode      string `mapstructure:"ssl_mode"`
		Path         string `mapstructure:"path"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`

		WakeRetries      int    `mapstructure:"wake_retries"`
		WakeDelaySeconds int    `mapstructure:"wake_delay_seconds"`
		WakeErrorCode    string `mapstructure:"wake_error_code"`
	} `mapstructure:"datasource"`

	Obfuscation struct {
		LowNumberSuppressionThreshold int64  `mapstructure:"low_number_suppression_threshold"`
		RoundingTarget                int64  `mapstructure:"rounding_target"`
		FiltersFile                   string `mapstructure:"filters_file"`
	} `mapstructure:"obfuscation"`

	TaskAPI struct {
		BaseURL                string `mapstructure:"base_url"`
		Username               string `mapstructure:"username"`
		Password               string `mapstructure:"password"`
		CollectionID           string `mapstructure:"collection_id"`
		Type                   string `mapstructure:"type"`
		PollingIntervalSeconds int    `mapstructure:"polling_interval_seconds"`
		InitialBackoffSeconds  int    `mapstructure:"initial_backoff_seconds"`
		MaxBackoffSeconds      int    `mapstructure:"max_backoff_seconds"`
		SendRetries            int    `mapstructure:"send_retries"`
		SendRetryDelaySeconds  int    `mapstructure:"send_retry_delay_seconds"`
		RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds"`
	} `mapstructure:"task_api"`
}

// keys bound to env so AutomaticEnv can reach nested sections, e.g. APP_DATASOURCE_HOST.
var keys = []string{
	"server.addr", "server.log_level",
	"datasource.driver", "datasource.host", "datasource.port", "datasource.user",
	"datasource.password", "datasource.db_name", "datasource.schema", "datasource.ssl_mode",
	"datasource.path", "datasource.max_open_conns", "datasource.max_idle_conns",
	"datasource.wake_retries", "datasource.wake_delay_seconds", "datasource.wake_error_code",
	"obfuscation.low_number_suppression_threshold", "obfuscation.rounding_target",
	"obfuscation.filters_file",
	"task_api.base_url", "task_api.username", "task_api.password", "task_api.collection_id",
	"task_api.type", "task_api.polling_interval_seconds", "task_api.initial_backoff_seconds",
	"task_api.max_backoff_seconds", "task_api.send_retries", "task_api.send_retry_delay_seconds",
	"task_api.request_timeout_seconds",
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	v.SetDefault("obfuscation.low_number_suppression_threshold", 5)
	v.SetDefault("obfuscation.rounding_target", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	validate(&cfg)
	return cfg, nil
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Datasource.Driver == "" {
		c.Datasource.Driver = "postgres"
	}
	if c.Datasource.Port == 0 {
		c.Datasource.Port = 5432
	}
	if c.Datasource.SSLMode == "" {
		c.Datasource.SSLMode = "disable"
	}
	if c.Datasource.MaxOpenConns == 0 {
		c.Datasource.MaxOpenConns = 10
	}
	if c.Datasource.MaxIdleConns == 0 {
		c.Datasource.MaxIdleConns = 10
	}
	if c.Datasource.WakeRetries <= 0 {
		c.Datasource.WakeRetries = 1
	}
	if c.Datasource.WakeDelaySeconds <= 0 {
		c.Datasource.WakeDelaySeconds = 30
	}
	if c.Datasource.WakeErrorCode == "" {
		c.Datasource.WakeErrorCode = "40613"
	}
	if c.Obfuscation.LowNumberSuppressionThreshold < 0 {
		c.Obfuscation.LowNumberSuppressionThreshold = 0
	}
	if c.Obfuscation.RoundingTarget < 0 {
		c.Obfuscation.RoundingTarget = 0
	}
	if c.TaskAPI.PollingIntervalSeconds <= 0 {
		c.TaskAPI.PollingIntervalSeconds = 5
	}
	if c.TaskAPI.InitialBackoffSeconds <= 0 {
		c.TaskAPI.InitialBackoffSeconds = 5
	}
	if c.TaskAPI.MaxBackoffSeconds <= 0 {
		c.TaskAPI.MaxBackoffSeconds = 60
	}
	if c.TaskAPI.SendRetries <= 0 {
		c.TaskAPI.SendRetries = 4
	}
	if c.TaskAPI.SendRetryDelaySeconds <= 0 {
		c.TaskAPI.SendRetryDelaySeconds = 5
	}
	if c.TaskAPI.RequestTimeoutSeconds <= 0 {
		c.TaskAPI.RequestTimeoutSeconds = 30
	}
}

// DSN returns the connection string for the configured driver. For sqlite it is the file path.
func (c Config) DSN() string {
	if c.IsSQLite() {
		return c.Datasource.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Datasource.User, c.Datasource.Password),
		Host:   fmt.Sprintf("%s:%d", c.Datasource.Host, c.Datasource.Port),
		Path:   "/" + c.Datasource.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.Datasource.SSLMode)
	if c.Datasource.Schema != "" {
		q.Set("search_path", c.Datasource.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DSNRedacted is DSN with credentials masked, for logging.
func (c Config) DSNRedacted() string {
	if c.IsSQLite() {
		return c.Datasource.Path
	}
	return fmt.Sprintf("postgres://***:***@%s:%d/%s", c.Datasource.Host, c.Datasource.Port, c.Datasource.DBName)
}

func (c Config) IsSQLite() bool {
	switch strings.ToLower(c.Datasource.Driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

func (c Config) WakeDelay() time.Duration {
	return time.Duration(c.Datasource.WakeDelaySeconds) * time.Second
}

func (c Config) PollingInterval() time.Duration {
	return time.Duration(c.TaskAPI.PollingIntervalSeconds) * time.Second
}

func (c Config) InitialBackoff() time.Duration {
	return time.Duration(c.TaskAPI.InitialBackoffSeconds) * time.Second
}

func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.TaskAPI.MaxBackoffSeconds) * time.Second
}

func (c Config) SendRetryDelay() time.Duration {
	return time.Duration(c.TaskAPI.SendRetryDelaySeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.TaskAPI.RequestTimeoutSeconds) * time.Second
}

// PollingEnabled reports whether enough of the task API is configured to run the poller.
func (c Config) PollingEnabled() bool {
	return c.TaskAPI.BaseURL != "" && c.TaskAPI.CollectionID != ""
}
