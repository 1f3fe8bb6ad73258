package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/qbloq/mongobridge/core"
	"github.com/qbloq/mongobridge/serv/internal/util"
)

type Core = core.Config

// Configuration for the mongobridge service
type Config struct {
	// Configuration for the translation engine
	Core `mapstructure:",squash" jsonschema:"title=Translator Configuration"`

	// Configuration for the service
	Serv `mapstructure:",squash" jsonschema:"title=Service Configuration"`

	viper *viper.Viper
}

// Configuration for the service
type Serv struct {
	// Application name is used in log and debug messages
	AppName string `mapstructure:"app_name" jsonschema:"title=Application Name"`

	// When enabled logs default to JSON and the config is never reloaded
	Production bool `jsonschema:"title=Production Mode,default=false"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path" jsonschema:"title=Config Path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug error warn info" jsonschema:"title=Log Level,enum=debug,enum=error,enum=warn,enum=info"`

	// Logging Format: "auto" (default, colored console in dev, JSON in production),
	// "json" (always JSON), or "simple" (always colored console)
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=auto json simple" jsonschema:"title=Logging Format,enum=auto,enum=json,enum=simple"`

	// Enable OpenTelemetry spans around every MongoDB command
	EnableTracing bool `mapstructure:"enable_tracing" jsonschema:"title=Enable Tracing,default=false"`

	// Enables reloading the catalog on config changes. Disabled in production
	WatchAndReload bool `mapstructure:"reload_on_config_change" jsonschema:"title=Reload Config"`

	// How collection names are derived for entities without an explicit
	// collection: "mapped" uses the entity name, "plural" the pluralized
	// snake case entity name
	CollectionNaming string `mapstructure:"collection_naming" validate:"omitempty,oneof=mapped plural" jsonschema:"title=Collection Naming,enum=mapped,enum=plural"`

	// Database configuration
	DB Database `mapstructure:"database" jsonschema:"title=Database"`
}

// Database configuration
type Database struct {
	ConnString string `mapstructure:"connection_string" validate:"omitempty,startswith=mongodb" jsonschema:"title=Connection String,example=mongodb://localhost:27017"`
	Host       string `jsonschema:"title=Host"`
	Port       uint16 `jsonschema:"title=Port"`
	DBName     string `mapstructure:"dbname" jsonschema:"title=Database Name"`
	User       string `jsonschema:"title=User"`
	Password   string `jsonschema:"title=Password"`

	// Size of database connection pool
	PoolSize int `mapstructure:"pool_size" validate:"gte=0" jsonschema:"title=Connection Pool Size"`

	// Max number of active database connections allowed
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" jsonschema:"title=Maximum Connections"`

	// Max time after which idle database connections are closed
	MaxConnIdleTime time.Duration `mapstructure:"max_connection_idle_time" jsonschema:"title=Connection Idle Time"`

	// Max time after which database connections are not reused
	MaxConnLifeTime time.Duration `mapstructure:"max_connection_life_time" jsonschema:"title=Connection Life Time"`

	// Database ping timeout is used for db health checking
	PingTimeout time.Duration `mapstructure:"ping_timeout" jsonschema:"title=Healthcheck Ping Timeout"`

	// Number of connection attempts before giving up
	ConnectRetries uint `mapstructure:"connect_retries" jsonschema:"title=Connect Retries,default=10"`

	// Set up an secure TLS encrypted database connection
	EnableTLS bool `mapstructure:"enable_tls" jsonschema:"title=Enable TLS"`

	// Overrides the server name checked against the server certificate
	ServerName string `mapstructure:"server_name" jsonschema:"title=TLS Server Name"`

	// Required for TLS. Can be a file path or the contents of the PEM file
	ServerCert string `mapstructure:"server_cert" jsonschema:"title=Server Certificate"`

	// Can be a file path or the contents of the PEM file
	ClientCert string `mapstructure:"client_cert" validate:"required_with=ClientKey" jsonschema:"title=Client Certificate"`

	// Can be a file path or the contents of the pem file
	ClientKey string `mapstructure:"client_key" validate:"required_with=ClientCert" jsonschema:"title=Client Key"`
}

var validate = validator.New()

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable. This is the best way to create a new mongobridge config.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	viper := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		viper.SetFs(fs)
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := viper.GetString("inherits"); pcf != "" {
		cf := viper.ConfigFileUsed()
		viper = newViper(cp, pcf)
		if fs != nil {
			viper.SetFs(fs)
		}

		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := viper.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		viper.SetConfigFile(cf)

		if err := viper.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	applyEnv(viper)

	config := &Config{viper: viper}
	config.ConfigPath = cp

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewConfig function creates a new mongobridge configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	viper := newViperWithDefaults()
	viper.SetConfigType(format)

	if err := viper.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}
	applyEnv(viper)

	c := &Config{viper: viper}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv copies MB_ prefixed environment variables into the config,
// MB_DATABASE_DBNAME sets database.dbname
func applyEnv(vi *viper.Viper) {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "MB_") {
			kv := strings.SplitN(e, "=", 2)
			util.SetKeyValue(vi, kv[0], kv[1])
		}
	}
}

// newViperWithDefaults returns a new viper instance with the default settings
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("app_name", "mongobridge")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")
	vi.SetDefault("enable_tracing", false)
	vi.SetDefault("collection_naming", "mapped")

	vi.SetDefault("database.host", "localhost")
	vi.SetDefault("database.port", 27017)
	vi.SetDefault("database.dbname", "mongobridge")
	vi.SetDefault("database.pool_size", 10)
	vi.SetDefault("database.ping_timeout", "5s")
	vi.SetDefault("database.connect_retries", 10)

	vi.SetDefault("env", "development")

	vi.BindEnv("env", "GO_ENV") //nolint:errcheck

	return vi
}

// newViper returns a new viper instance with the default settings
func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// Validate checks the service and translator settings
func (c *Config) Validate() error {
	if err := validate.Struct(c.Serv); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Core.Validate()
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

// ConfigFileUsed returns the file the config was read from, empty when
// it was built from a string
func (c *Config) ConfigFileUsed() string {
	if c.viper == nil {
		return ""
	}
	return c.viper.ConfigFileUsed()
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
// Returns true if log_format is "json" OR if log_format is "auto" and production mode is enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Serv.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
