package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/tour-booking-service/internal/persistence"
	"github.com/spec-kit/tour-booking-service/internal/repository"
)

const statsCacheTTL = 5 * time.Minute

// TourService carries the tour operations that go beyond generic CRUD:
// guide assignment and the reporting aggregations, with the latter cached
// in redis.
type TourService struct {
	tours  repository.TourRepository
	cache  *persistence.Redis
	logger *zap.Logger
}

// NewTourService builds the service.
func NewTourService(tours repository.TourRepository, cache *persistence.Redis, logger *zap.Logger) *TourService {
	return &TourService{tours: tours, cache: cache, logger: logger}
}

// Stats returns the per-difficulty aggregate, served from cache when fresh.
func (s *TourService) Stats(ctx context.Context) ([]repository.TourStats, error) {
	const cacheKey = "tours:stats"

	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var stats []repository.TourStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return stats, nil
		}
	}

	stats, err := s.tours.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

// MonthlyPlan returns tour starts per month of one year, cached per year.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]repository.MonthlyPlanEntry, error) {
	cacheKey := fmt.Sprintf("tours:plan:%d", year)

	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var plan []repository.MonthlyPlanEntry
		if err := json.Unmarshal(cached, &plan); err == nil {
			return plan, nil
		}
	}

	plan, err := s.tours.MonthlyPlan(ctx, year)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKey, plan)
	return plan, nil
}

// ReplaceGuides swaps the guide assignments of a tour.
func (s *TourService) ReplaceGuides(ctx context.Context, tourID string, guideIDs []string) error {
	if _, err := s.tours.Store().FindByID(ctx, tourID); err != nil {
		return err
	}
	return s.tours.ReplaceGuides(ctx, tourID, guideIDs)
}

// cacheGet returns the cached value when redis is reachable; cache misses
// and errors both fall through to the database.
func (s *TourService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil || s.cache.Client == nil {
		return nil, false
	}
	raw, err := s.cache.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (s *TourService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil || s.cache.Client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, key, raw, statsCacheTTL).Err(); err != nil {
		s.logger.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
