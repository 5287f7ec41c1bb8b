package waittimes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

const cacheKey = "portal:waittimes"

// ReportAPI fetches the department wait-time report from the clinic backend.
type ReportAPI interface {
	GetWaitTimes(ctx context.Context) ([]clinicapi.WaitTimeEntry, error)
}

// Summary aggregates the department rows into dashboard headline numbers.
type Summary struct {
	TotalWaiting       int     `json:"total_waiting"`
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
	BusiestDepartment  string  `json:"busiest_department,omitempty"`
}

// Report is the cached dashboard payload.
type Report struct {
	Departments []clinicapi.WaitTimeEntry `json:"departments"`
	Summary     Summary                   `json:"summary"`
	FetchedAt   time.Time                 `json:"fetched_at"`
}

// Service serves the wait-time dashboard, caching the backend report in
// Redis so the dashboard's refresh loop does not hammer the clinic API.
type Service struct {
	api    ReportAPI
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewService(api ReportAPI, rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{api: api, redis: rdb, ttl: ttl, logger: logger}
}

// Report returns the current wait-time report, from cache when fresh.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached Report
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("wait-time cache read failed", "error", err)
		}
	}

	entries, err := s.api.GetWaitTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("waittimes: fetch report: %w", err)
	}

	report := &Report{
		Departments: entries,
		Summary:     Summarize(entries),
		FetchedAt:   time.Now().UTC(),
	}

	if s.redis != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.redis.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("wait-time cache write failed", "error", err)
			}
		}
	}
	return report, nil
}

// Summarize folds the department rows into headline numbers. The average is
// weighted by patients waiting; empty departments do not skew it.
func Summarize(entries []clinicapi.WaitTimeEntry) Summary {
	var sum Summary
	var weighted float64
	busiest := -1
	for _, e := range entries {
		sum.TotalWaiting += e.PatientsWaiting
		weighted += e.AverageWaitMinutes * float64(e.PatientsWaiting)
		if e.PatientsWaiting > busiest {
			busiest = e.PatientsWaiting
			sum.BusiestDepartment = e.Department
		}
	}
	if sum.TotalWaiting > 0 {
		sum.AverageWaitMinutes = weighted / float64(sum.TotalWaiting)
	}
	return sum
}
