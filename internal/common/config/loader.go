// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

func Load() (*Config, error) {
	// .env is optional; system environment still applies without it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finishLoad(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finishLoad(v)
}

func finishLoad(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)
		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "clinic-reminders"
	}
	if cfg.App.MetricsAddress == "" {
		cfg.App.MetricsAddress = ":9102"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Clinic.Name == "" {
		cfg.Clinic.Name = "Orvosi Rendelő"
	}
	if cfg.Clinic.DefaultLanguage == "" {
		cfg.Clinic.DefaultLanguage = "hu"
	}

	if cfg.Mail.SendTimeout == 0 {
		cfg.Mail.SendTimeout = 15000
	}

	if cfg.Automation.ReminderTime == "" {
		cfg.Automation.ReminderTime = "12:00"
	}
	if cfg.Automation.NewAppointmentTime == "" {
		cfg.Automation.NewAppointmentTime = "15:30"
	}

	if cfg.Calendar.DaysAhead == 0 {
		cfg.Calendar.DaysAhead = 30
	}
	if cfg.Calendar.Timeout == 0 {
		cfg.Calendar.Timeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Mail.Enabled {
		if cfg.Mail.FromEmail == "" {
			return fmt.Errorf("mail.from_email is required when mail is enabled")
		}
		if cfg.Mail.AWSRegion == "" {
			return fmt.Errorf("mail.aws_region is required when mail is enabled")
		}
	}

	if !clockPattern.MatchString(cfg.Automation.ReminderTime) {
		return fmt.Errorf("automation.reminder_time must be HH:MM, got %q", cfg.Automation.ReminderTime)
	}
	if !clockPattern.MatchString(cfg.Automation.NewAppointmentTime) {
		return fmt.Errorf("automation.new_appointment_time must be HH:MM, got %q", cfg.Automation.NewAppointmentTime)
	}

	return nil
}
