package visitors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

const (
	summaryWindowDays  = 30
	frequentWindowDays = 90
	frequentLimit      = 10
)

// StatusCounts aggregates entries by workflow state for a report window.
type StatusCounts struct {
	Total           int `json:"total_visitors"`
	Approved        int `json:"approved"`
	Pending         int `json:"pending"`
	Rejected        int `json:"rejected"`
	CurrentlyInside int `json:"currently_inside"`
	CheckedOut      int `json:"checked_out"`
}

// FrequentVisitor is one row of the repeat-visitor report.
type FrequentVisitor struct {
	Name       string `json:"name"`
	Mobile     string `json:"mobile"`
	VisitCount int    `json:"visit_count"`
}

// DailyReport is the per-date report payload.
type DailyReport struct {
	Date string `json:"date"`
	StatusCounts
}

// SummaryReport is the rolling-window report payload.
type SummaryReport struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	StatusCounts
}

// Reporter serves the visitor reports with a Redis read-through cache. Misses
// for the same key are collapsed so a cold cache issues one aggregate query
// per report, not one per caller.
type Reporter struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewReporter wires a Reporter. A nil cache disables caching.
func NewReporter(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Reporter {
	return &Reporter{repo: repo, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Daily returns the counts for one calendar day.
func (r *Reporter) Daily(ctx context.Context, day string) (*DailyReport, error) {
	date, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid date format. Use YYYY-MM-DD", httpx.ErrValidation)
	}
	key := "report:daily:" + day
	return cached(ctx, r, key, func(ctx context.Context) (*DailyReport, error) {
		counts, err := r.repo.CountsBetween(ctx, date, date.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		return &DailyReport{Date: day, StatusCounts: counts}, nil
	})
}

// Summary returns the rolling 30-day counts.
func (r *Reporter) Summary(ctx context.Context) (*SummaryReport, error) {
	to := r.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -summaryWindowDays)
	key := "report:summary:" + from.Format("20060102")
	return cached(ctx, r, key, func(ctx context.Context) (*SummaryReport, error) {
		counts, err := r.repo.CountsBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return &SummaryReport{
			FromDate:     from.Format("2006-01-02"),
			ToDate:       to.AddDate(0, 0, -1).Format("2006-01-02"),
			StatusCounts: counts,
		}, nil
	})
}

// Frequent returns repeat visitors over the last 90 days, top ten by visits.
func (r *Reporter) Frequent(ctx context.Context) ([]FrequentVisitor, error) {
	since := r.now().UTC().AddDate(0, 0, -frequentWindowDays)
	key := "report:frequent:" + since.Format("20060102")
	out, err := cached(ctx, r, key, func(ctx context.Context) (*[]FrequentVisitor, error) {
		rows, err := r.repo.FrequentVisitors(ctx, since, frequentLimit)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []FrequentVisitor{}
		}
		return &rows, nil
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// Warm precomputes today's reports so the first reader of the day hits the
// cache. Invoked by the scheduled warmup job.
func (r *Reporter) Warm(ctx context.Context) error {
	if _, err := r.Daily(ctx, r.now().UTC().Format("2006-01-02")); err != nil {
		return fmt.Errorf("warm daily: %w", err)
	}
	if _, err := r.Summary(ctx); err != nil {
		return fmt.Errorf("warm summary: %w", err)
	}
	if _, err := r.Frequent(ctx); err != nil {
		return fmt.Errorf("warm frequent: %w", err)
	}
	return nil
}

// cached is the shared read-through path: cache hit, else singleflight the
// loader and store the result.
func cached[T any](ctx context.Context, r *Reporter, key string, load func(context.Context) (*T, error)) (*T, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, key).Bytes()
		if err == nil {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				return &out, nil
			}
			// Unreadable cache entries are dropped and recomputed.
			r.cache.Del(ctx, key)
		} else if !errors.Is(err, redis.Nil) {
			r.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		out, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if raw, err := json.Marshal(out); err == nil {
				if err := r.cache.Set(ctx, key, raw, r.ttl).Err(); err != nil {
					r.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
				}
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
