package app

import (
	"log/slog"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/config"
	"dispatch/internal/events"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// Infrastructure holds the connected backends the services run on.
// RedisClient and NewRelicApp are optional.
type Infrastructure struct {
	Store       repository.Store
	Publisher   events.Publisher
	RedisClient *redis.Client
	NewRelicApp *newrelic.Application
	Logger      *slog.Logger
}

// NewRouterDeps builds the services and handlers on top of infra.
func NewRouterDeps(cfg *config.Config, infra Infrastructure) RouterDeps {
	deps := service.Dependencies{
		Store:        infra.Store,
		Publisher:    infra.Publisher,
		Logger:       infra.Logger,
		StoreTimeout: cfg.Store.Timeout,
		LockTTL:      cfg.Dispatch.LockTTL,
	}
	// Interfaces stay nil without Redis so the services skip the geo index,
	// cache and locks entirely.
	if infra.RedisClient != nil {
		deps.Locations = internalRedis.NewLocationStore(infra.RedisClient)
		deps.Cache = internalRedis.NewCacheStore(infra.RedisClient)
		deps.Locks = internalRedis.NewLockStore(infra.RedisClient)
	}

	driverService := service.NewDriverService(deps, cfg.Dispatch.NearbyRadiusKm, cfg.Dispatch.NearbyLimit)
	rideService := service.NewRideService(deps)
	dispatchService := service.NewDispatchService(deps)

	return RouterDeps{
		DriverHandler: handler.NewDriverHandler(driverService),
		RideHandler:   handler.NewRideHandler(rideService, dispatchService),
		RedisClient:   infra.RedisClient,
		NewRelicApp:   infra.NewRelicApp,
		Logger:        infra.Logger,
	}
}
