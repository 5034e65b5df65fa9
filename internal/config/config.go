// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Event backends.
const (
	EventsRiver       = "river"
	EventsEventBridge = "eventbridge"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Events    EventsConfig
	Tenants   TenantsConfig
	Signing   SigningConfig
	Logging   LoggingConfig
	OTel      OTelConfig
	AWSRegion string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	RequestTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// StoreConfig selects and configures the registration and tenant stores.
type StoreConfig struct {
	Backend               string
	DatabasePath          string
	RegistrationTableName string
	TenantTableName       string
	TenantConfigIndexName string
}

// EventsConfig selects and configures the event bus.
type EventsConfig struct {
	Backend            string
	BusName            string
	ControlPlaneSource string
	AppPlaneSource     string
	ProvisionerEnabled bool

	// SourceOverrides replaces the catalog source for single detail types.
	SourceOverrides map[domain.DetailType]string
}

// Sources returns the logical event origins as a domain catalog.
func (e EventsConfig) Sources() domain.EventSources {
	return domain.EventSources{
		ControlPlane:     e.ControlPlaneSource,
		ApplicationPlane: e.AppPlaneSource,
		Overrides:        e.SourceOverrides,
	}
}

// TenantsConfig locates the internal tenant API and the tenant record
// columns used for config lookup.
type TenantsConfig struct {
	APIURL           string
	RegistrationPath string
	NameColumn       string
	ConfigColumn     string
}

// SigningConfig holds the request-signing identity.
type SigningConfig struct {
	Service         string
	AccessKeyID     string
	SecretAccessKey string
	Verify          bool
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level   string
	Format  string
	Service string
}

// OTelConfig holds OpenTelemetry provider settings.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       string
	Insecure       bool
	MetricInterval time.Duration
}

// OTel exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Load loads configuration from environment variables and .env file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine; environment variables still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading .env: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg, err := bindConfig(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("PORT", 8080)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Stores
	v.SetDefault("STORE_BACKEND", StoreSQLite)
	v.SetDefault("DATABASE_PATH", "controlplane.db")
	v.SetDefault("TENANT_REGISTRATION_TABLE_NAME", "TenantRegistration")
	v.SetDefault("TENANT_DETAILS_TABLE_NAME", "TenantDetails")
	v.SetDefault("TENANT_CONFIG_INDEX_NAME", "tenantConfigIndex")

	// Events
	v.SetDefault("EVENT_BACKEND", EventsRiver)
	v.SetDefault("EVENTBUS_NAME", "default")
	v.SetDefault("CONTROL_PLANE_EVENT_SOURCE", "controlPlaneEventSource")
	v.SetDefault("APPLICATION_PLANE_EVENT_SOURCE", "applicationPlaneEventSource")
	v.SetDefault("PROVISIONER_ENABLED", true)
	v.SetDefault("EVENT_SOURCE_OVERRIDES", "")

	// Tenants
	v.SetDefault("TENANT_API_URL", "")
	v.SetDefault("TENANT_REGISTRATION_PATH", "/tenant-registrations")
	v.SetDefault("TENANT_NAME_COLUMN", "tenantName")
	v.SetDefault("TENANT_CONFIG_COLUMN", "tenantConfig")

	// Signing
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SIGNING_SERVICE", "execute-api")
	v.SetDefault("SIGV4_ACCESS_KEY_ID", "")
	v.SetDefault("SIGV4_SECRET_ACCESS_KEY", "")
	v.SetDefault("SIGV4_VERIFY", false)

	// Logging
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// OTel
	v.SetDefault("OTEL_SERVICE_NAME", "controlplane")
	v.SetDefault("OTEL_SERVICE_VERSION", "0.1.0")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_EXPORTER", ExporterStdout)
	v.SetDefault("OTEL_METRIC_INTERVAL", "60s")
}

func bindConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Server.Port = v.GetInt("PORT")
	cfg.Server.RequestTimeout = v.GetDuration("REQUEST_TIMEOUT")

	cfg.Store.Backend = strings.ToLower(v.GetString("STORE_BACKEND"))
	cfg.Store.DatabasePath = v.GetString("DATABASE_PATH")
	cfg.Store.RegistrationTableName = v.GetString("TENANT_REGISTRATION_TABLE_NAME")
	cfg.Store.TenantTableName = v.GetString("TENANT_DETAILS_TABLE_NAME")
	cfg.Store.TenantConfigIndexName = v.GetString("TENANT_CONFIG_INDEX_NAME")

	cfg.Events.Backend = strings.ToLower(v.GetString("EVENT_BACKEND"))
	cfg.Events.BusName = v.GetString("EVENTBUS_NAME")
	cfg.Events.ControlPlaneSource = v.GetString("CONTROL_PLANE_EVENT_SOURCE")
	cfg.Events.AppPlaneSource = v.GetString("APPLICATION_PLANE_EVENT_SOURCE")
	cfg.Events.ProvisionerEnabled = v.GetBool("PROVISIONER_ENABLED")
	overrides, err := parseSourceOverrides(v.GetString("EVENT_SOURCE_OVERRIDES"))
	if err != nil {
		return nil, err
	}
	cfg.Events.SourceOverrides = overrides

	cfg.Tenants.APIURL = v.GetString("TENANT_API_URL")
	if cfg.Tenants.APIURL == "" {
		cfg.Tenants.APIURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Tenants.RegistrationPath = v.GetString("TENANT_REGISTRATION_PATH")
	cfg.Tenants.NameColumn = v.GetString("TENANT_NAME_COLUMN")
	cfg.Tenants.ConfigColumn = v.GetString("TENANT_CONFIG_COLUMN")

	cfg.AWSRegion = v.GetString("AWS_REGION")
	cfg.Signing.Service = v.GetString("SIGNING_SERVICE")
	cfg.Signing.AccessKeyID = v.GetString("SIGV4_ACCESS_KEY_ID")
	cfg.Signing.SecretAccessKey = v.GetString("SIGV4_SECRET_ACCESS_KEY")
	cfg.Signing.Verify = v.GetBool("SIGV4_VERIFY")

	cfg.Logging.Level = v.GetString("LOG_LEVEL")
	cfg.Logging.Format = v.GetString("LOG_FORMAT")

	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.ServiceVersion = v.GetString("OTEL_SERVICE_VERSION")
	cfg.OTel.Environment = v.GetString("OTEL_ENVIRONMENT")
	cfg.OTel.Exporter = strings.ToLower(v.GetString("OTEL_EXPORTER"))
	cfg.OTel.MetricInterval = v.GetDuration("OTEL_METRIC_INTERVAL")
	// OTLP goes over plain HTTP outside production unless told otherwise.
	cfg.OTel.Insecure = cfg.OTel.Environment != "production"
	if v.IsSet("OTEL_EXPORTER_INSECURE") {
		cfg.OTel.Insecure = v.GetBool("OTEL_EXPORTER_INSECURE")
	}
	cfg.Logging.Service = cfg.OTel.ServiceName

	return cfg, nil
}

// parseSourceOverrides reads "detailType=source" pairs separated by commas.
func parseSourceOverrides(raw string) (map[domain.DetailType]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[domain.DetailType]string)
	for _, pair := range strings.Split(raw, ",") {
		key, source, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key, source = strings.TrimSpace(key), strings.TrimSpace(source)
		if !ok || key == "" || source == "" {
			return nil, fmt.Errorf("invalid event source override %q (want detailType=source)", pair)
		}
		d := domain.DetailType(key)
		if _, err := d.Plane(); err != nil {
			return nil, fmt.Errorf("event source override: %w", err)
		}
		out[d] = source
	}
	return out, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.Server.RequestTimeout)
	}

	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.DatabasePath == "" {
			return errors.New("database path is required for the sqlite store")
		}
	case StoreDynamoDB:
		if c.Store.RegistrationTableName == "" || c.Store.TenantTableName == "" {
			return errors.New("table names are required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown store backend %q (use %q or %q)", c.Store.Backend, StoreSQLite, StoreDynamoDB)
	}

	switch c.Events.Backend {
	case EventsRiver:
		if c.Store.DatabasePath == "" {
			return errors.New("database path is required for the river event bus")
		}
	case EventsEventBridge:
		if c.Events.BusName == "" {
			return errors.New("event bus name is required for eventbridge")
		}
	default:
		return fmt.Errorf("unknown event backend %q (use %q or %q)", c.Events.Backend, EventsRiver, EventsEventBridge)
	}

	if c.Events.ControlPlaneSource == "" || c.Events.AppPlaneSource == "" {
		return errors.New("both event sources are required")
	}

	switch c.OTel.Exporter {
	case ExporterStdout, ExporterOTLP, ExporterNone:
	default:
		return fmt.Errorf("unknown otel exporter %q (use %q, %q or %q)", c.OTel.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
	}
	if c.OTel.MetricInterval <= 0 {
		return fmt.Errorf("otel metric interval must be positive, got %s", c.OTel.MetricInterval)
	}

	u, err := url.Parse(c.Tenants.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid tenant API URL %q", c.Tenants.APIURL)
	}

	if (c.Signing.AccessKeyID == "") != (c.Signing.SecretAccessKey == "") {
		return errors.New("signing access key id and secret must be set together")
	}
	if c.Signing.Verify && c.Signing.AccessKeyID == "" {
		return errors.New("signature verification requires a static signing identity")
	}

	return nil
}
