package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lodgekit/reserve/internal/config"
	"github.com/lodgekit/reserve/internal/engine"
	"github.com/lodgekit/reserve/internal/idgen/uuidgen"
	"github.com/lodgekit/reserve/internal/logger"
	"github.com/lodgekit/reserve/internal/migration"
	"github.com/lodgekit/reserve/internal/storage/memory"
	"github.com/lodgekit/reserve/internal/storage/postgres"
	"github.com/lodgekit/reserve/internal/transport/web"
)

func Run(l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	conf := config.Load()

	manager, err := buildManager(ctx, l, conf)
	if err != nil {
		return err
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      log.Default(),
		Host:              conf.Host,
		Port:              conf.Port,
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		LivenessEndpoint:  "/liveness",
	}

	srv, err := web.New(ctx, webConf, manager)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}

// buildManager wires the engine over Postgres when a DSN is configured, over
// the in-memory store otherwise. Both get the same seed inventory.
func buildManager(ctx context.Context, l *logger.Logger, conf config.Config) (*engine.Manager, error) {
	idGen := uuidgen.New()

	if conf.PostgresDSN != "" {
		pg, err := postgres.Open(ctx, postgres.Config{
			L:        l,
			DSN:      conf.PostgresDSN,
			LockWait: conf.LockWait,
			CacheTTL: conf.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}

		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres storage: %w", err)
		}

		if err := migration.Seed(ctx, l, pg); err != nil {
			return nil, fmt.Errorf("seed postgres storage: %w", err)
		}

		l.LogInfo("Storage backend: postgres")

		return engine.New(l, pg, idGen), nil
	}

	mem := memory.New(memory.Config{L: l, LockWait: conf.LockWait})

	if err := migration.Seed(ctx, l, mem); err != nil {
		return nil, fmt.Errorf("seed memory storage: %w", err)
	}

	l.LogWarnf("Storage backend: memory, bookings will not survive a restart")

	return engine.New(l, mem, idGen), nil
}
