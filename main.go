package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/config"
	"github.com/ngenohkevin/cassandra-mcp/internal/auth"
	"github.com/ngenohkevin/cassandra-mcp/internal/catalog"
	"github.com/ngenohkevin/cassandra-mcp/internal/dispatch"
	"github.com/ngenohkevin/cassandra-mcp/internal/docker"
	"github.com/ngenohkevin/cassandra-mcp/internal/health"
	"github.com/ngenohkevin/cassandra-mcp/internal/logging"
	"github.com/ngenohkevin/cassandra-mcp/internal/mcp"
	"github.com/ngenohkevin/cassandra-mcp/internal/metrics"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
	"github.com/ngenohkevin/cassandra-mcp/internal/server"
	"github.com/ngenohkevin/cassandra-mcp/internal/system"
	"github.com/ngenohkevin/cassandra-mcp/internal/systemd"
)

const appName = "cassandra-mcp"

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $CONFIG_FILE or config/config.yaml)")
	transport := flag.String("transport", "", "override the transport: stdio or http")
	generateKey := flag.Bool("generate-key", false, "generate an API key, save it to the .env file and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appName, version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.Transport = config.Transport(*transport)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	_, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		App:    appName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if *generateKey {
		if err := runGenerateKey(cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to generate API key")
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		logCloser.Close()
		os.Exit(1)
	}
}

func runGenerateKey(cfg *config.Config) error {
	key, err := config.GenerateAPIKey()
	if err != nil {
		return err
	}
	if err := cfg.SaveAPIKey(key); err != nil {
		return err
	}
	log.Info().Str("env_file", cfg.EnvFile).Str("key", auth.Mask(key)).Msg("API key saved")
	fmt.Println(key)
	return nil
}

func run(cfg *config.Config) error {
	for _, msg := range cfg.ApplyPathFallbacks() {
		log.Warn().Msg(msg)
	}

	manager := config.NewManager(cfg.ConfigFile, cfg)
	metrics.Register()

	executor, closeExecutor, err := newExecutor(cfg, manager)
	if err != nil {
		return err
	}
	defer closeExecutor()

	dispatcher := dispatch.New(catalog.Default(), executor)

	authService := auth.NewService(cfg.APIKeys, cfg.JWTSecret)
	if authService.KeyCount() == 0 {
		log.Warn().Msg("no API keys configured, every call will be rejected; run with -generate-key")
	}

	opts := []health.Option{health.WithHost(system.GetHostInfo, "/")}
	if cfg.CassandraService != "" {
		opts = append(opts, health.WithUnit(systemd.NewReader(), cfg.CassandraService))
	}
	checker := health.NewChecker(executor, cfg.HealthCheckInterval, opts...)
	defer checker.Close()

	manager.OnReload(func(c *config.Config) {
		authService.Reload(c.APIKeys, c.JWTSecret)
		checker.Invalidate()
		log.Info().
			Str("java_home", c.JavaHome).
			Str("cassandra_bin_path", c.CassandraBinPath).
			Dur("command_timeout", c.CommandTimeout).
			Int("api_keys", authService.KeyCount()).
			Msg("configuration reloaded")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go reloadOnHangup(ctx, manager)

	log.Info().
		Str("version", version).
		Str("transport", string(cfg.Transport)).
		Int("commands", dispatcher.Catalog().Len()).
		Msg("starting Cassandra MCP server")

	switch cfg.Transport {
	case config.TransportHTTP:
		return server.New(cfg, dispatcher, checker, authService, manager, version).Run(ctx)
	default:
		return runStdio(ctx, mcp.NewServer(appName, version, dispatcher, authService, checker, os.Stdin, os.Stdout))
	}
}

// runStdio returns when stdin closes or a shutdown signal arrives. A blocked
// stdin read cannot be interrupted, so on a signal the server is abandoned.
func runStdio(ctx context.Context, srv *mcp.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		return nil
	}
}

func newExecutor(cfg *config.Config, settings nodetool.Settings) (nodetool.Executor, func(), error) {
	if cfg.DockerContainer == "" {
		for _, problem := range cfg.PathProblems() {
			log.Warn().Msg(problem)
		}
		return nodetool.NewRunner(settings), func() {}, nil
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	executor := docker.NewExecutor(cli, cfg.DockerContainer, cfg.DockerNodetoolPath, settings)

	ctx, cancel := context.WithTimeout(context.Background(), health.ProbeTimeout)
	defer cancel()
	if !executor.IsAvailable(ctx) {
		log.Warn().Str("container", cfg.DockerContainer).Msg("docker daemon is not reachable")
	}

	log.Info().Str("container", cfg.DockerContainer).Msg("running nodetool through docker exec")
	return executor, func() { _ = executor.Close() }, nil
}

func reloadOnHangup(ctx context.Context, manager *config.Manager) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changes, err := manager.Reload()
			if err != nil {
				log.Error().Err(err).Msg("config reload failed, keeping previous configuration")
				continue
			}
			for _, msg := range changes {
				log.Warn().Msg(msg)
			}
		}
	}
}
