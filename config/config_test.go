package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every source at an empty temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, ".env"))
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "config.yaml"))
	for _, key := range []string{"CASSANDRA_JAVA_HOME", "CASSANDRA_BIN_PATH", "API_KEYS", "JWT_SECRET", "PORT", "HOST", "TRANSPORT", "LOG_LEVEL", "COMMAND_TIMEOUT_SECONDS", "DOCKER_CONTAINER"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadWithDefaults(t *testing.T) {
	cfg := LoadWithDefaults()

	assert.NotNil(t, cfg)
	assert.Equal(t, 8092, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, []string{"test-api-key"}, cfg.APIKeys)
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout)
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultJavaHome, cfg.JavaHome)
	assert.Equal(t, DefaultCassandraBinPath, cfg.CassandraBinPath)
	assert.Equal(t, 300*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Empty(t, cfg.APIKeys)
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
java_home: /opt/java17
cassandra_bin_path: /opt/cassandra/bin
command_timeout: 60
health_check_interval: 10
api_keys: [alpha, beta]
log_level: debug
transport: http
port: 9100
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/java17", cfg.JavaHome)
	assert.Equal(t, "/opt/cassandra/bin", cfg.CassandraBinPath)
	assert.Equal(t, 60*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys)
	assert.Equal(t, "alpha", cfg.JWTSecret)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, 9100, cfg.Port)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.RateLimitRPS)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("java_home: /from/yaml\nport: 9100\n"), 0644))

	t.Setenv("CASSANDRA_JAVA_HOME", "/from/env")
	t.Setenv("API_KEYS", " one , two,,")
	t.Setenv("COMMAND_TIMEOUT_SECONDS", "45")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.JavaHome)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"one", "two"}, cfg.APIKeys)
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
}

func TestLoadEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0600))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWTSecret)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config parse failed")
}

func TestValidate(t *testing.T) {
	cfg := LoadWithDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Transport = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "unknown transport")

	cfg = LoadWithDefaults()
	cfg.Transport = TransportHTTP
	cfg.Port = 70000
	assert.ErrorContains(t, cfg.Validate(), "invalid port")

	cfg = LoadWithDefaults()
	cfg.CommandTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestApplyPathFallbacks(t *testing.T) {
	cfg := LoadWithDefaults()
	cfg.JavaHome = "/does/not/exist/java"
	cfg.CassandraBinPath = t.TempDir()

	changes := cfg.ApplyPathFallbacks()

	assert.Len(t, changes, 1)
	assert.Contains(t, changes[0], "JAVA_HOME")
	assert.Equal(t, DefaultJavaHome, cfg.JavaHome)
	assert.NotEqual(t, DefaultCassandraBinPath, cfg.CassandraBinPath)
}

func TestPathProblems(t *testing.T) {
	javaHome := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(javaHome, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(javaHome, "bin", "java"), []byte("#!/bin/sh\n"), 0755))

	binDir := t.TempDir()
	nodetool := filepath.Join(binDir, "nodetool")
	require.NoError(t, os.WriteFile(nodetool, []byte("#!/bin/sh\n"), 0644))

	cfg := LoadWithDefaults()
	cfg.JavaHome = javaHome
	cfg.CassandraBinPath = binDir

	problems := cfg.PathProblems()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "not executable")
	assert.False(t, cfg.ValidatePaths())

	require.NoError(t, os.Chmod(nodetool, 0755))
	assert.True(t, cfg.ValidatePaths())
}

func TestConfigAddr(t *testing.T) {
	cfg := LoadWithDefaults()
	assert.Equal(t, "127.0.0.1:8092", cfg.Addr())
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	require.NoError(t, err)
	b, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestSaveAPIKey(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=9000\nAPI_KEYS=first\n"), 0600))

	cfg := LoadWithDefaults()
	cfg.APIKeys = []string{"first"}
	cfg.EnvFile = envFile

	require.NoError(t, cfg.SaveAPIKey("second"))
	assert.Equal(t, []string{"first", "second"}, cfg.APIKeys)

	values, err := godotenv.Read(envFile)
	require.NoError(t, err)
	assert.Equal(t, "first,second", values["API_KEYS"])
	assert.Equal(t, "9000", values["PORT"])

	info, err := os.Stat(envFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestManagerReload(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(path, []byte("cassandra_bin_path: "+binDir+"\ncommand_timeout: 60\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	m := NewManager(path, cfg)

	assert.Equal(t, binDir, m.BinaryDirectory())
	assert.Equal(t, 60*time.Second, m.ExecutionTimeout())

	var seen *Config
	m.OnReload(func(c *Config) { seen = c })

	require.NoError(t, os.WriteFile(path, []byte("java_home: /nowhere\ncassandra_bin_path: "+binDir+"\ncommand_timeout: 5\n"), 0644))
	changes, err := m.Reload()
	require.NoError(t, err)

	assert.Len(t, changes, 1)
	assert.Equal(t, DefaultJavaHome, m.RuntimeHome())
	assert.Equal(t, 5*time.Second, m.ExecutionTimeout())
	assert.Same(t, m.Current(), seen)
}

func TestManagerReloadKeepsConfigOnError(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("command_timeout: 60\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	m := NewManager(path, cfg)

	require.NoError(t, os.WriteFile(path, []byte("transport: smoke-signals\n"), 0644))
	_, err = m.Reload()
	assert.Error(t, err)
	assert.Same(t, cfg, m.Current())
}

func TestManagerAddAPIKey(t *testing.T) {
	cfg := LoadWithDefaults()
	cfg.JWTSecret = ""
	cfg.APIKeys = nil
	cfg.EnvFile = filepath.Join(t.TempDir(), ".env")
	m := NewManager("", cfg)

	var keys []string
	m.OnReload(func(c *Config) { keys = c.APIKeys })

	require.NoError(t, m.AddAPIKey("fresh-key"))

	assert.Equal(t, []string{"fresh-key"}, keys)
	assert.Equal(t, "fresh-key", m.Current().JWTSecret)
	assert.Empty(t, cfg.APIKeys)

	values, err := godotenv.Read(cfg.EnvFile)
	require.NoError(t, err)
	assert.Equal(t, "fresh-key", values["API_KEYS"])
}

func TestManagerReloadPicksUpEnvFile(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_KEYS=first\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	m := NewManager(cfg.ConfigFile, cfg)
	require.NoError(t, m.AddAPIKey("second"))

	_, err = m.Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, m.Current().APIKeys)

	require.NoError(t, os.WriteFile(envFile, []byte("API_KEYS=third\n"), 0600))
	_, err = m.Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"third"}, m.Current().APIKeys)
	assert.Empty(t, os.Getenv("API_KEYS"))
}

func TestLoadIgnoresShellJavaHome(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("java_home: /from/yaml\n"), 0644))
	t.Setenv("JAVA_HOME", "/usr/lib/jvm/default")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/yaml", cfg.JavaHome)
}
