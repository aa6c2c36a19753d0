package duetoday

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/config"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/kv"
	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/internal/data/db"
	"github.com/colonyops/duetoday/pkg/executil"
)

// App is the central entry point for all duetoday operations.
// Commands and the TUI consume App instead of cherry-picking raw
// dependencies.
type App struct {
	Tasks    *Service
	Timers   *timer.Registry
	Settings *settings.Store
	Badges   *badge.Store

	Bus      *eventbus.EventBus
	Config   *config.Config
	DB       *db.DB
	Executor executil.Executor
}

// NewApp constructs an App from explicit dependencies.
func NewApp(
	service *Service,
	timers *timer.Registry,
	st *settings.Store,
	badges *badge.Store,
	bus *eventbus.EventBus,
	cfg *config.Config,
	database *db.DB,
	exec executil.Executor,
) *App {
	return &App{
		Tasks:    service,
		Timers:   timers,
		Settings: st,
		Badges:   badges,
		Bus:      bus,
		Config:   cfg,
		DB:       database,
		Executor: exec,
	}
}

const installIDKey = "install_id"

// InstallID returns the stable per-device identifier from the local
// bucket, minting one on first use. It tags the API User-Agent so
// tracker-side request logs can tell devices apart.
func InstallID(ctx context.Context, bucket kv.KV) string {
	var id string
	if err := bucket.Get(ctx, installIDKey, &id); err == nil && id != "" {
		return id
	}

	id = uuid.NewString()
	if err := bucket.Set(ctx, installIDKey, id); err != nil {
		log.Debug().Err(err).Msg("persist install id failed")
	}
	return id
}
