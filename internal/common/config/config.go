// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Clinic     ClinicConfig     `mapstructure:"clinic"`
	Mail       MailConfig       `mapstructure:"mail"`
	Automation AutomationConfig `mapstructure:"automation"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name           string `mapstructure:"name"`
	Version        string `mapstructure:"version"`
	Environment    string `mapstructure:"environment"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// --- Domain Configuration Sections ---

// ClinicConfig identifies the practice in outgoing messages.
type ClinicConfig struct {
	Name            string `mapstructure:"name"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// MailConfig holds settings for the outbound mail transport.
type MailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	AWSRegion   string `mapstructure:"aws_region"`
	FromEmail   string `mapstructure:"from_email"`
	AccessKeyID string `mapstructure:"access_key_id"`
	SendTimeout int    `mapstructure:"send_timeout"` // milliseconds
}

// GetSendTimeout returns the per-send timeout as a duration.
func (m MailConfig) GetSendTimeout() time.Duration {
	return time.Duration(m.SendTimeout) * time.Millisecond
}

// AutomationConfig holds the daily trigger times for the scheduler loop.
type AutomationConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ReminderTime       string `mapstructure:"reminder_time"`        // HH:MM local time
	NewAppointmentTime string `mapstructure:"new_appointment_time"` // HH:MM local time
}

// CalendarConfig holds settings for the external event source.
type CalendarConfig struct {
	SourceURL string `mapstructure:"source_url"`
	DaysAhead int    `mapstructure:"days_ahead"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
// GetTimeout returns the fetch timeout as a duration.
func (c CalendarConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
