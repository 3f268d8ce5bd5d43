package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/analytics"
	"github.com/aristath/frontier/internal/modules/calculations"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/history"
)

// InitializeServices creates the repositories and services on top of the
// container's databases
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.History = history.NewHistoryDB(container.HistoryDB.Conn(), log)
	container.Cache = calculations.NewCache(container.CacheDB.Conn(), cfg.CacheTTL, log)

	container.Analytics = analytics.NewService(container.History, analytics.Options{
		Defaults:           cfg.Analytics,
		MaxConcurrentLoads: cfg.MaxConcurrentLoads,
		Cache:              container.Cache,
	}, log)
	container.Renderer = charts.NewRenderer(log)
}
