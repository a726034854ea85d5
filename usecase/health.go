package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/JarvisJ/plex-ai/domains/health"
	"github.com/JarvisJ/plex-ai/domains/kvstore"
	"github.com/JarvisJ/plex-ai/pkg/turnpool"
	"github.com/sirupsen/logrus"
)

const storePingTimeout = 2 * time.Second

type HealthOptions struct {
	Version     string
	ServerID    string
	StoreDriver string
	LLMProvider string
	LLMModel    string
	// WebSearch reports whether the web_search tool is configured.
	WebSearch bool
}

type healthService struct {
	store kvstore.Store
	pool  *turnpool.Pool
	opts  HealthOptions
	now   func() time.Time
}

func NewHealthService(store kvstore.Store, pool *turnpool.Pool, opts HealthOptions) health.IHealthUsecase {
	return &healthService{store: store, pool: pool, opts: opts, now: time.Now}
}

func (s *healthService) record(entity health.EntityType, id string, status health.Status, message string) health.HealthRecord {
	return health.HealthRecord{
		EntityType:  entity,
		EntityID:    id,
		Status:      status,
		LastMessage: message,
		LastChecked: s.now().UTC(),
	}
}

func (s *healthService) checkStore(ctx context.Context) health.HealthRecord {
	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("[Health] store ping failed")
		return s.record(health.EntityStore, s.opts.StoreDriver, health.StatusError, err.Error())
	}
	return s.record(health.EntityStore, s.opts.StoreDriver, health.StatusOk, "ping ok")
}

func (s *healthService) checkPool() health.HealthRecord {
	if s.pool == nil {
		return s.record(health.EntityWorkerPool, "turns", health.StatusUnknown, "no pool configured")
	}
	stats := s.pool.Stats()
	msg := fmt.Sprintf("%d workers, %d queued, %d dropped", stats.NumWorkers, stats.TotalQueued(), stats.TotalDropped)
	if !stats.IsRunning {
		return s.record(health.EntityWorkerPool, "turns", health.StatusError, msg)
	}
	return s.record(health.EntityWorkerPool, "turns", health.StatusOk, msg)
}

func (s *healthService) Check(ctx context.Context) health.Report {
	checks := []health.HealthRecord{
		s.checkStore(ctx),
		s.checkPool(),
		s.record(health.EntityLLM, s.opts.LLMProvider, health.StatusOk, s.opts.LLMModel),
	}
	if s.opts.WebSearch {
		checks = append(checks, s.record(health.EntityWebSearch, "tavily", health.StatusOk, "configured"))
	} else {
		checks = append(checks, s.record(health.EntityWebSearch, "tavily", health.StatusUnknown, "not configured"))
	}

	status := health.StatusOk
	for _, c := range checks {
		if c.Status == health.StatusError {
			status = health.StatusError
		}
	}
	return health.Report{
		Status:   status,
		Version:  s.opts.Version,
		ServerID: s.opts.ServerID,
		Checks:   checks,
	}
}
