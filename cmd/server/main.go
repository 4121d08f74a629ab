// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/tomtom215/pinksync-hub/internal/api"
	"github.com/tomtom215/pinksync-hub/internal/auth"
	"github.com/tomtom215/pinksync-hub/internal/backplane"
	"github.com/tomtom215/pinksync-hub/internal/config"
	"github.com/tomtom215/pinksync-hub/internal/eventsource"
	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/supervisor"
	"github.com/tomtom215/pinksync-hub/internal/supervisor/services"
	"github.com/tomtom215/pinksync-hub/internal/validation"
	ws "github.com/tomtom215/pinksync-hub/internal/websocket"
)

func main() {
	flags := pflag.NewFlagSet("pinksync-hub", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file (overrides CONFIG_PATH)")
	hashKey := flags.String("hash-api-key", "", "print the bcrypt hash of an API key for auth.api_key_hashes and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if *hashKey != "" {
		hash, err := auth.HashAPIKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.LoadWithKoanf(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	applyLogging(cfg.Logging, nil)

	if err := run(cfg, watchedConfigPath(*configPath)); err != nil {
		logging.Fatal().Err(err).Msg("Hub failed")
	}
}

// run wires the components, runs the supervisor tree until a signal and
// reports services that did not stop in time.
//
//nolint:gocyclo // sequential setup steps
func run(cfg *config.Config, configPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverID := hub.NewServerID(cfg.Instance.ID, cfg.Instance.Revision)
	logging.Info().
		Str("server_id", serverID).
		Str("backplane", cfg.Backplane.BackplaneScheme()).
		Bool("event_source", cfg.EventSource.Enabled).
		Msg("Starting PinkSync hub")

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// === BACKPLANE ===
	bp, err := openBackplane(ctx, cfg.Backplane)
	if err != nil {
		return err
	}
	defer bp.close()

	if bp.embedded != nil {
		tree.AddBackplaneService(services.NewEmbeddedNATSService(bp.embedded))
	}

	// === HUB AND DISPATCH ===
	h := hub.New(hub.Config{
		ServerID:    serverID,
		GeneralRoom: cfg.Dispatch.GeneralRoom,
	})

	dispatcherCfg := hub.DispatcherConfig{
		SendTimeout:    cfg.Dispatch.SendTimeout,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
	}
	if bp.enabled() {
		dispatcherCfg.Publisher = backplane.NewPublisher(bp.backplane, serverID, cfg.Backplane.PublishTimeout)
	}
	if cfg.Dispatch.ValidatePayloads {
		dispatcherCfg.Validate = validation.PayloadHook
	}
	dispatcher := hub.NewDispatcher(h, dispatcherCfg)

	var opsBackplane api.BackplaneStatus
	var opsRelay api.SubscriptionStatus
	if bp.enabled() {
		relay := backplane.NewRelay(bp.backplane, dispatcher, backplane.RelayConfig{
			Origin:         serverID,
			BackoffInitial: cfg.Backplane.BackoffInitial,
			BackoffMax:     cfg.Backplane.BackoffMax,
		})
		tree.AddBackplaneService(services.NewRelayService(relay))
		opsBackplane, opsRelay = bp.breaker, relay
	}

	tree.AddMessagingService(services.NewHubService(h))
	if cfg.EventSource.Enabled {
		tree.AddMessagingService(eventsource.New(dispatcher, eventsource.Config{
			MinInterval: cfg.EventSource.MinInterval,
			MaxInterval: cfg.EventSource.MaxInterval,
		}))
	}

	// === TRANSPORT ===
	validator, err := auth.NewCredentialValidator(auth.Config{
		JWTSecret:         cfg.Auth.JWTSecret,
		APIKeyHashes:      cfg.Auth.APIKeyHashes,
		TrustClientUserID: cfg.Auth.TrustClientUserID,
		Required:          cfg.Auth.Required,
	})
	if err != nil {
		return fmt.Errorf("create credential validator: %w", err)
	}

	wsHandler := ws.NewHandler(h, dispatcher, validator, nil, ws.Config{
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
		WriteWait:        cfg.Transport.WriteWait,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		MaxMessageSize:   cfg.Transport.MaxMessageSize,
		SendBuffer:       cfg.Transport.SendBuffer,
		ReadBufferSize:   cfg.Transport.ReadBufferSize,
		WriteBufferSize:  cfg.Transport.WriteBufferSize,
		AllowedOrigins:   cfg.Transport.AllowedOrigins,
		AllowEmptyOrigin: cfg.Transport.AllowEmptyOrigin,
		InboundRate:      cfg.Transport.InboundRate,
		InboundBurst:     cfg.Transport.InboundBurst,
		EmitErrorFrames:  cfg.Transport.EmitErrorFrames,
	})

	// === HTTP SERVERS ===
	transportLn, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("bind transport listener: %w", err)
	}
	opsLn, err := net.Listen("tcp", cfg.Ops.Addr())
	if err != nil {
		_ = transportLn.Close()
		return fmt.Errorf("bind ops listener: %w", err)
	}

	transportServer := &http.Server{
		Handler:           api.NewTransportRouter(wsHandler),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       60 * time.Second,
	}

	opsHandler := api.NewHandler(h, opsBackplane, opsRelay)
	opsMiddleware := api.NewOpsMiddleware(
		cfg.Ops.CORSOrigins,
		cfg.Ops.RateLimitRequests,
		cfg.Ops.RateLimitWindow,
		cfg.Ops.RateLimitDisabled,
	)
	opsServer := &http.Server{
		Handler:           api.NewOpsRouter(opsHandler, opsMiddleware),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddAPIService(services.NewHTTPServerService(transportServer, cfg.Server.ShutdownTimeout).
		WithName("transport-http").
		WithListener(transportLn))
	tree.AddAPIService(services.NewHTTPServerService(opsServer, cfg.Server.ShutdownTimeout).
		WithName("ops-http").
		WithListener(opsLn))
	logging.Info().
		Str("transport_addr", transportLn.Addr().String()).
		Str("ops_addr", opsLn.Addr().String()).
		Msg("Listeners bound")

	if configPath != "" {
		watchLogLevel(configPath)
	}

	// === START SUPERVISOR TREE ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Hub stopped gracefully")
	return nil
}

// watchedConfigPath returns the file to watch for changes, or "" when no
// file was named explicitly.
func watchedConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(config.ConfigPathEnvVar)
}

// applyLogging configures the global logger from cfg and returns the level
// it replaced. A nil out writes to stderr.
func applyLogging(cfg config.LoggingConfig, out io.Writer) zerolog.Level {
	previous := logging.GetLevel()
	logging.Init(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		Caller:    cfg.Caller,
		Timestamp: true,
		Output:    out,
	})
	return previous
}

// watchLogLevel re-reads the config file on change and applies a new log
// level. Other settings need a restart.
func watchLogLevel(path string) {
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.LoadWithKoanf(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		previous := applyLogging(cfg.Logging, nil)
		if current := logging.GetLevel(); current != previous {
			logging.Info().
				Str("previous", previous.String()).
				Str("level", current.String()).
				Msg("Log level reloaded")
		}
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
	}
}
