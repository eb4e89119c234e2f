// internal/common/config/config.go
package config

import "fmt"

// Config is the main engine configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Registry      RegistryConfig     `mapstructure:"registry"`
	Providers     ProvidersConfig    `mapstructure:"providers"`
	Payment       PaymentConfig      `mapstructure:"payment"`
	Sweeper       SweeperConfig      `mapstructure:"sweeper"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name          string `mapstructure:"name"`
	Version       string `mapstructure:"version"`
	Environment   string `mapstructure:"environment"`
	ListenAddress string `mapstructure:"listen_address"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// RegistryConfig points at the declarative template definitions loaded
// at process start.
type RegistryConfig struct {
	TemplatesDir string `mapstructure:"templates_dir"`
}

// ProvidersConfig holds defaults for the external data fetch fan-out
// and the configured HTTP source endpoints.
type ProvidersConfig struct {
	DefaultTimeout int                  `mapstructure:"default_timeout"` // milliseconds
	MaxConcurrent  int                  `mapstructure:"max_concurrent"`
	Sources        []ProviderSourceConf `mapstructure:"sources"`
}

// ProviderSourceConf describes one HTTP data source templates may
// reference by name in their on-entry declarations.
type ProviderSourceConf struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// PaymentConfig holds settings for the external charge collaborator.
type PaymentConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// SweeperConfig configures the lifecycle prune sweeper.
type SweeperConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"` // cron expression
	BatchSize int    `mapstructure:"batch_size"`
}

// NotificationConfig holds settings for notification side effects.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
