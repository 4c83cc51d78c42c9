// Command minorm serves the registered models over HTTP.
//
// Run with:
//
//	minorm -config minorm.yaml -env .env
//
// Every config key can also be set as MINORM_<SECTION>__<KEY>, e.g.
// MINORM_DATABASE__PASSWORD.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/minorm/internal/config"
	"github.com/koustreak/minorm/internal/connect"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/koustreak/minorm/internal/orm"
	"github.com/koustreak/minorm/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML or TOML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	verify := flag.Bool("verify", true, "check model mappings against the live tables at startup")
	flag.Parse()

	cfg, err := config.Load(config.Options{File: *configFile, EnvFile: *envFile})
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)

	if err := run(cfg, log, *verify); err != nil {
		log.With().Err(err).Logger().Fatal("minorm stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger, verify bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pool, err := connect.CreatePool(ctx, &cfg.Database, database.WithMetrics(database.NewMetrics("minorm", reg)))
	if err != nil {
		return err
	}
	// The pool is closed exactly once, after the server has drained.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := pool.Close(closeCtx); err != nil {
			log.With().Err(err).Logger().Warn("pool close")
		}
	}()

	models := orm.NewRegistry(log)
	for _, decl := range declarations() {
		t, err := models.Register(decl)
		if err != nil {
			return err
		}
		if verify {
			if err := t.Verify(ctx, pool); err != nil {
				return err
			}
		}
	}

	srv := server.New(cfg.Server, pool, models, reg, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
