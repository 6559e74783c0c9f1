// Package config has the configuration file for the app
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/labref-api/errors"
)

// Environment is the deployment environment of the service
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string { return string(e) }

// ParseEnvironment accepts the short and long spellings of each environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, errors.Newf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// DefaultReloadSchedule reloads the reference set every six hours
const DefaultReloadSchedule = "0 */6 * * *"

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	ReferenceDir    string        // empty means the built-in reference set
	ReloadSchedule  string        // cron expression
	WatchReferences bool          // reload when ReferenceDir changes
	WatchDebounce   time.Duration // quiet period before a watch reload
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, errors.Wrap(err, "configuration validation failed: invalid ENV")
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
		ReferenceDir:      os.Getenv("LAB_REF_DIR"),
		ReloadSchedule:    getEnvWithDefault("RELOAD_SCHEDULE", DefaultReloadSchedule),
		WatchReferences:   getBoolEnvWithDefault("WATCH_REFERENCES", false),
		WatchDebounce:     getDurationEnvWithDefault("WATCH_DEBOUNCE", 500*time.Millisecond),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate PORT
	if err := validatePort(cfg.Port); err != nil {
		return errors.Wrap(err, "invalid PORT")
	}

	// Validate ADDRESS
	if err := validateAddress(cfg.Address); err != nil {
		return errors.Wrap(err, "invalid ADDRESS")
	}

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "invalid LOG_LEVEL")
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return errors.Wrap(err, "invalid MAX_REQUEST_BODY")
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return errors.Wrap(err, "invalid MAX_HEADER_SIZE")
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return errors.Wrap(err, "invalid LOG_RETENTION_WEEKS")
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return errors.Wrap(err, "invalid MAX_LOG_FILE_SIZE")
	}

	// Validate LAB_REF_DIR
	if err := validateReferenceDir(cfg.ReferenceDir); err != nil {
		return errors.Wrap(err, "invalid LAB_REF_DIR")
	}

	// Validate RELOAD_SCHEDULE
	if err := validateReloadSchedule(cfg.ReloadSchedule); err != nil {
		return errors.Wrap(err, "invalid RELOAD_SCHEDULE")
	}

	// WATCH_REFERENCES needs a directory to watch
	if cfg.WatchReferences && cfg.ReferenceDir == "" {
		return errors.WithHint(
			errors.New("invalid WATCH_REFERENCES: the built-in reference set cannot be watched"),
			"set LAB_REF_DIR to a reference directory")
	}

	if cfg.WatchDebounce <= 0 || cfg.WatchDebounce > time.Minute {
		return errors.Newf("invalid WATCH_DEBOUNCE: must be between 1ns and 1m, got: %s", cfg.WatchDebounce)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return errors.New("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return errors.Wrap(err, "PORT must be a valid number")
	}

	if portNum < 1 || portNum > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return errors.Newf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return errors.New("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return errors.Newf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return errors.Newf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return errors.New("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return errors.Newf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return errors.Newf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return errors.Newf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return errors.Newf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return errors.Newf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return errors.Newf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return errors.Newf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return errors.Newf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateReferenceDir accepts an empty value or an existing directory
func validateReferenceDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.WithHint(errors.Wrapf(err, "LAB_REF_DIR %s", dir),
			"create it with `labref init <dir>` or unset LAB_REF_DIR to use the built-in set")
	}
	if !info.IsDir() {
		return errors.Newf("LAB_REF_DIR %s is not a directory", dir)
	}
	return nil
}

// validateReloadSchedule lets gocron parse the cron expression
func validateReloadSchedule(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return errors.New("RELOAD_SCHEDULE cannot be empty")
	}
	s := gocron.NewScheduler(time.UTC)
	defer s.Clear()
	if _, err := s.Cron(expr).Do(func() {}); err != nil {
		return errors.Wrapf(err, "RELOAD_SCHEDULE %q is not a valid cron expression", expr)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault gets an environment variable as a duration with a default value
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"LAB_REF_DIR",
		"RELOAD_SCHEDULE",
		"WATCH_REFERENCES",
		"WATCH_DEBOUNCE",
	}
}
