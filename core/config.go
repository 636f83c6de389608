package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string
		fromEmail       string

		Log       LogConfig
		Server    ServerConfig
		Auth      AuthConfig
		Database  DatabaseConfig
		Backend   BackendConfig
		Cache     CacheConfig
		Retry     RetryConfig
		Feed      FeedConfig
		Alerts    AlertsConfig
		Kafka     KafkaConfig
		Telemetry TelemetryConfig
		RabbitMQ  RabbitMQConfig
		Telegram  TelegramConfig
	}

	LogConfig struct {
		Level  string // debug, info, warn, error, fatal
		Format string // json, console
		Output string // stdout, stderr, or file path
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		AllowedOrigins  []string
		ShutdownTimeout time.Duration
	}

	// AuthConfig describes how tokens issued by the managed backend are verified.
	AuthConfig struct {
		JWTSecret   string
		JWTAudience string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// BackendConfig points at the managed backend's serverless function runtime.
	BackendConfig struct {
		FunctionsURL string
		AnonKey      string
		Timeout      time.Duration
	}

	CacheConfig struct {
		RoleTTL        time.Duration
		TeamsTTL       time.Duration
		TypesTTL       time.Duration
		RequestTTL     time.Duration
		RequestMaxSize int
	}

	RetryConfig struct {
		MaxRetries int
		BaseDelay  time.Duration
		Multiplier float64
	}

	FeedConfig struct {
		Channel      string
		Debounce     time.Duration
		MinReconnect time.Duration
		MaxReconnect time.Duration
	}

	AlertsConfig struct {
		LowCreditThreshold int
		SorenessThreshold  int
		EnergyThreshold    int
	}

	KafkaConfig struct {
		Broker         string
		TelemetryTopic string
	}

	// TelemetryConfig caps public reports. Critical ones have their own, lower cap
	// since each one mails the maintainers.
	TelemetryConfig struct {
		ReportsPerSecond  float64
		ReportBurst       int
		CriticalPerMinute float64
		CriticalBurst     int
	}

	RabbitMQConfig struct {
		URL string
	}

	TelegramConfig struct {
		Token string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.fromEmail}
}

// NewConfig loads the configuration from the environment.
// ENV selects the prefix of the variables to read: DEV (default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Hoopdesk")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("auth.jwtAudience", "authenticated")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "hoopdesk")
	v.SetDefault("database.user", "hoopdesk")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("backend.timeout", 30*time.Second)

	v.SetDefault("cache.roleTTL", 5*time.Minute)
	v.SetDefault("cache.teamsTTL", 30*time.Second)
	v.SetDefault("cache.typesTTL", 5*time.Minute)
	v.SetDefault("cache.requestTTL", 30*time.Second)
	v.SetDefault("cache.requestMaxSize", 50)

	v.SetDefault("retry.maxRetries", 3)
	v.SetDefault("retry.baseDelay", time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("feed.channel", "table_changes")
	v.SetDefault("feed.debounce", 100*time.Millisecond)
	v.SetDefault("feed.minReconnect", 10*time.Second)
	v.SetDefault("feed.maxReconnect", time.Minute)

	v.SetDefault("alerts.lowCreditThreshold", 2)
	v.SetDefault("alerts.sorenessThreshold", 8)
	v.SetDefault("alerts.energyThreshold", 2)

	v.SetDefault("kafka.telemetryTopic", "telemetry")
	v.SetDefault("telemetry.reportsPerSecond", 20.0)
	v.SetDefault("telemetry.reportBurst", 50)
	v.SetDefault("telemetry.criticalPerMinute", 1.0)
	v.SetDefault("telemetry.criticalBurst", 5)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, _ := os.Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		fromEmail:       v.GetString("defaultFromEmail"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			AllowedOrigins:  v.GetStringSlice("server.allowedOrigins"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Auth: AuthConfig{
			JWTSecret:   v.GetString("auth.jwtSecret"),
			JWTAudience: v.GetString("auth.jwtAudience"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Backend: BackendConfig{
			FunctionsURL: v.GetString("backend.functionsURL"),
			AnonKey:      v.GetString("backend.anonKey"),
			Timeout:      v.GetDuration("backend.timeout"),
		},
		Cache: CacheConfig{
			RoleTTL:        v.GetDuration("cache.roleTTL"),
			TeamsTTL:       v.GetDuration("cache.teamsTTL"),
			TypesTTL:       v.GetDuration("cache.typesTTL"),
			RequestTTL:     v.GetDuration("cache.requestTTL"),
			RequestMaxSize: v.GetInt("cache.requestMaxSize"),
		},
		Retry: RetryConfig{
			MaxRetries: v.GetInt("retry.maxRetries"),
			BaseDelay:  v.GetDuration("retry.baseDelay"),
			Multiplier: v.GetFloat64("retry.multiplier"),
		},
		Feed: FeedConfig{
			Channel:      v.GetString("feed.channel"),
			Debounce:     v.GetDuration("feed.debounce"),
			MinReconnect: v.GetDuration("feed.minReconnect"),
			MaxReconnect: v.GetDuration("feed.maxReconnect"),
		},
		Alerts: AlertsConfig{
			LowCreditThreshold: v.GetInt("alerts.lowCreditThreshold"),
			SorenessThreshold:  v.GetInt("alerts.sorenessThreshold"),
			EnergyThreshold:    v.GetInt("alerts.energyThreshold"),
		},
		Kafka: KafkaConfig{
			Broker:         v.GetString("kafka.broker"),
			TelemetryTopic: v.GetString("kafka.telemetryTopic"),
		},
		Telemetry: TelemetryConfig{
			ReportsPerSecond:  v.GetFloat64("telemetry.reportsPerSecond"),
			ReportBurst:       v.GetInt("telemetry.reportBurst"),
			CriticalPerMinute: v.GetFloat64("telemetry.criticalPerMinute"),
			CriticalBurst:     v.GetInt("telemetry.criticalBurst"),
		},
		RabbitMQ: RabbitMQConfig{
			URL: v.GetString("rabbitmq.url"),
		},
		Telegram: TelegramConfig{
			Token: v.GetString("telegram.token"),
		},
	}
}

func (c DatabaseConfig) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", c.Engine, c.User, c.Address(), c.Name)
}
