package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/tcpapi/internal/config"
	"github.com/danmuck/tcpapi/internal/gateway"
	"github.com/danmuck/tcpapi/internal/logging"
	"github.com/danmuck/tcpapi/internal/plugins"
	"github.com/danmuck/tcpapi/internal/processor"
	"github.com/danmuck/tcpapi/internal/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "service config path (defaults apply when empty)")
	envPath := flag.String("env", ".env", "optional dotenv file with TCPAPI_* overrides")
	flag.Parse()

	envErr := godotenv.Load(*envPath)
	logging.ConfigureRuntime()
	if envErr != nil {
		log.Debug().Str("path", *envPath).Msg("tcpapictl no dotenv file loaded; using process environment")
	}
	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tcpapictl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.DefaultRuntimeConfig()
	if configPath != "" {
		loaded, err := config.LoadServiceConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := plugins.NewManager(cfg.PluginsPath, db)
	defer mgr.Close()
	router := processor.NewRouter(mgr)
	router.RegisterPlugins(mgr)

	// Initial load is strict; later refreshes fall back to the last good document.
	if err := mgr.EnsureConfigsLoaded(ctx, true); err != nil {
		return err
	}
	if cfg.WatchPlugins {
		if err := mgr.Watch(); err != nil {
			log.Warn().Err(err).Msg("tcpapictl plugin watcher unavailable; refreshes rely on force_config_refresh")
		}
	}

	svc := gateway.NewService(cfg.Service, router, mgr)
	log.Info().
		Str("addr", cfg.Service.ListenAddr).
		Str("admin", cfg.Service.AdminListenAddr).
		Str("plugins", cfg.PluginsPath).
		Str("db", cfg.DBPath).
		Msg("tcpapictl starting")
	return svc.RunContext(ctx)
}
