package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the environment set a value
const (
	DefaultJavaHome         = "/opt/jdk/"
	DefaultCassandraBinPath = "/usr/local/cassandra/bin"
	DefaultConfigFile       = "config/config.yaml"
	DefaultCommandTimeout   = 300 * time.Second
	DefaultHealthInterval   = 30 * time.Second
)

// Transport selects how calls reach the dispatcher
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// GenerateAPIKey generates a secure random API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Config holds all configuration for the server
type Config struct {
	// Cassandra runtime
	JavaHome         string        `yaml:"java_home"`
	CassandraBinPath string        `yaml:"cassandra_bin_path"`
	CommandTimeout   time.Duration `yaml:"-"`

	// Authentication
	APIKeys   []string `yaml:"api_keys"`
	JWTSecret string   `yaml:"jwt_secret"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`

	// Health
	HealthCheckInterval time.Duration `yaml:"-"`
	CassandraService    string        `yaml:"cassandra_service"`

	// Transport
	Transport      Transport     `yaml:"transport"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"-"`
	WriteTimeout   time.Duration `yaml:"-"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateLimitRPS   int           `yaml:"rate_limit_rps"`

	// Docker exec mode
	DockerContainer    string `yaml:"docker_container"`
	DockerNodetoolPath string `yaml:"docker_nodetool_path"`

	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`
}

// fileConfig mirrors the YAML document; durations are given in seconds
type fileConfig struct {
	Config                     `yaml:",inline"`
	CommandTimeoutSeconds      int `yaml:"command_timeout"`
	HealthCheckIntervalSeconds int `yaml:"health_check_interval"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		JavaHome:            DefaultJavaHome,
		CassandraBinPath:    DefaultCassandraBinPath,
		CommandTimeout:      DefaultCommandTimeout,
		LogLevel:            "info",
		LogFormat:           "console",
		HealthCheckInterval: DefaultHealthInterval,
		Transport:           TransportStdio,
		Host:                "127.0.0.1",
		Port:                8092,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        DefaultCommandTimeout + 30*time.Second,
		AllowedOrigins:      []string{"*"},
		RateLimitRPS:        20,
		DockerNodetoolPath:  "nodetool",
	}
}

// Load reads configuration from the YAML file, the .env file and the
// environment, in increasing order of precedence
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = env{}.getEnv("CONFIG_FILE", DefaultConfigFile)
	}

	envFile := getEnvFile()
	// .env is optional; its values never replace the process environment
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	cfg := Defaults()
	if err := loadYAML(configFile, cfg); err != nil {
		return nil, err
	}

	env{dotenv: dotenv}.apply(cfg)
	cfg.ConfigFile = configFile
	cfg.EnvFile = envFile

	if cfg.JWTSecret == "" && len(cfg.APIKeys) > 0 {
		// Use first API key as fallback for JWT secret
		cfg.JWTSecret = cfg.APIKeys[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	fc := fileConfig{Config: *cfg}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	*cfg = fc.Config
	if fc.CommandTimeoutSeconds > 0 {
		cfg.CommandTimeout = time.Duration(fc.CommandTimeoutSeconds) * time.Second
	}
	if fc.HealthCheckIntervalSeconds > 0 {
		cfg.HealthCheckInterval = time.Duration(fc.HealthCheckIntervalSeconds) * time.Second
	}
	return nil
}

func (e env) apply(cfg *Config) {
	// the shell's own JAVA_HOME is not read; only the namespaced variable
	cfg.JavaHome = e.getEnv("CASSANDRA_JAVA_HOME", cfg.JavaHome)
	cfg.CassandraBinPath = e.getEnv("CASSANDRA_BIN_PATH", cfg.CassandraBinPath)
	cfg.CommandTimeout = e.getEnvSeconds("COMMAND_TIMEOUT_SECONDS", cfg.CommandTimeout)
	cfg.APIKeys = e.getEnvSlice("API_KEYS", cfg.APIKeys)
	cfg.JWTSecret = e.getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = e.getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = e.getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogFormat = e.getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.HealthCheckInterval = e.getEnvSeconds("HEALTH_CHECK_INTERVAL_SECONDS", cfg.HealthCheckInterval)
	cfg.CassandraService = e.getEnv("CASSANDRA_SERVICE", cfg.CassandraService)
	cfg.Transport = Transport(e.getEnv("TRANSPORT", string(cfg.Transport)))
	cfg.Host = e.getEnv("HOST", cfg.Host)
	cfg.Port = e.getEnvInt("PORT", cfg.Port)
	cfg.ReadTimeout = e.getEnvSeconds("READ_TIMEOUT_SECONDS", cfg.ReadTimeout)
	cfg.WriteTimeout = e.getEnvSeconds("WRITE_TIMEOUT_SECONDS", cfg.WriteTimeout)
	cfg.AllowedOrigins = e.getEnvSlice("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.RateLimitRPS = e.getEnvInt("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.DockerContainer = e.getEnv("DOCKER_CONTAINER", cfg.DockerContainer)
	cfg.DockerNodetoolPath = e.getEnv("DOCKER_NODETOOL_PATH", cfg.DockerNodetoolPath)
}

// Validate rejects values the server cannot run with. Missing paths are not
// an error here; see ApplyPathFallbacks.
func (c *Config) Validate() error {
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", c.Transport)
	}
	if c.Transport == TransportHTTP && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// ApplyPathFallbacks replaces configured paths that do not exist with the
// defaults and returns one message per replacement
func (c *Config) ApplyPathFallbacks() []string {
	var changes []string
	if !exists(c.JavaHome) && c.JavaHome != DefaultJavaHome {
		changes = append(changes, fmt.Sprintf("invalid JAVA_HOME path %s, falling back to %s", c.JavaHome, DefaultJavaHome))
		c.JavaHome = DefaultJavaHome
	}
	if !exists(c.CassandraBinPath) && c.CassandraBinPath != DefaultCassandraBinPath {
		changes = append(changes, fmt.Sprintf("invalid Cassandra bin path %s, falling back to %s", c.CassandraBinPath, DefaultCassandraBinPath))
		c.CassandraBinPath = DefaultCassandraBinPath
	}
	return changes
}

// PathProblems lists what is wrong with the Java and nodetool locations.
// An empty result means both are usable.
func (c *Config) PathProblems() []string {
	var problems []string

	if !exists(c.JavaHome) {
		problems = append(problems, fmt.Sprintf("JAVA_HOME path does not exist: %s", c.JavaHome))
	} else if !exists(c.JavaHome + "/bin/java") {
		problems = append(problems, fmt.Sprintf("java executable not found under %s", c.JavaHome))
	}

	nodetool := strings.TrimSuffix(c.CassandraBinPath, "/") + "/nodetool"
	info, err := os.Stat(nodetool)
	switch {
	case !exists(c.CassandraBinPath):
		problems = append(problems, fmt.Sprintf("Cassandra bin path does not exist: %s", c.CassandraBinPath))
	case err != nil:
		problems = append(problems, fmt.Sprintf("nodetool not found at %s", nodetool))
	case info.Mode()&0111 == 0:
		problems = append(problems, fmt.Sprintf("nodetool is not executable: %s", nodetool))
	}

	return problems
}

// ValidatePaths reports whether Java and nodetool are usable
func (c *Config) ValidatePaths() bool {
	return len(c.PathProblems()) == 0
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnvFile returns the path to the .env file
func getEnvFile() string {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		return envFile
	}
	return ".env"
}

// SaveAPIKey appends apiKey to API_KEYS in the .env file
func (c *Config) SaveAPIKey(apiKey string) error {
	keys := append(append([]string(nil), c.APIKeys...), apiKey)
	if err := UpdateEnvFile(c.EnvFile, map[string]string{"API_KEYS": strings.Join(keys, ",")}); err != nil {
		return err
	}
	c.APIKeys = keys
	return nil
}

// UpdateEnvFile updates or adds variables in a .env file, keeping other lines
func UpdateEnvFile(envFile string, updates map[string]string) error {
	existing := map[string]string{}
	if data, err := os.ReadFile(envFile); err == nil {
		parsed, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", envFile, err)
		}
		existing = parsed
	}

	for key, value := range updates {
		existing[key] = value
	}

	if err := godotenv.Write(existing, envFile); err != nil {
		return fmt.Errorf("failed to write .env file: %w", err)
	}
	return os.Chmod(envFile, 0600)
}

// LoadWithDefaults returns a config for tests
func LoadWithDefaults() *Config {
	cfg := Defaults()
	cfg.APIKeys = []string{"test-api-key"}
	cfg.JWTSecret = "test-jwt-secret"
	return cfg
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// env resolves variables from the process environment first, then from the
// parsed .env file. Empty values count as unset.
type env struct {
	dotenv map[string]string
}

func (e env) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return e.dotenv[key]
}

func (e env) getEnv(key, defaultValue string) string {
	if value := e.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getEnvInt(key string, defaultValue int) int {
	if value := e.lookup(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e env) getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := e.lookup(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func (e env) getEnvSlice(key string, defaultValue []string) []string {
	if value := e.lookup(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
