// Package railregistry maintains the static+dynamic configuration of
// settlement rails (spec.md §3 RailConfig, §4.4). It is grounded on the
// teacher's lpmanager.Registry/Manager pair: a concurrency-safe map
// keyed by name, with enable/disable and a background reset loop in
// place of the teacher's quote-aggregation goroutines.
package railregistry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

// DailyLimiter serializes daily-limit debits across processes.
// Implemented by *store.RedisCache. A Registry built with a nil limiter
// (as in single-process tests) checks limits in memory instead; see
// TryDebit.
type DailyLimiter interface {
	DebitDailyLimit(ctx context.Context, rail string, amount, initial float64) (bool, error)
	ResetDailyLimit(ctx context.Context, rail string, ceiling float64) error
}

// Registry holds every RailConfig and persists changes through a
// RelationalStore, mirroring the teacher's config-file persistence but
// against the `rail_config` table instead.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]domain.RailConfig

	relStore store.RelationalStore
	limiter  DailyLimiter
	cron     *cron.Cron
}

func NewRegistry(relStore store.RelationalStore, limiter DailyLimiter) *Registry {
	return &Registry{
		configs:  make(map[string]domain.RailConfig),
		relStore: relStore,
		limiter:  limiter,
		cron:     cron.New(),
	}
}

// Seed registers the default rail catalog (spec.md §4.4's worked
// IMPS/NEFT/RTGS/UPI/INTRABANK table) and persists it.
func (r *Registry) Seed(ctx context.Context, configs []domain.RailConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range configs {
		r.configs[rc.RailName] = rc
		if err := r.relStore.UpsertRailConfig(ctx, rc); err != nil {
			return fmt.Errorf("seed rail %s: %w", rc.RailName, err)
		}
		if r.limiter != nil {
			if err := r.limiter.ResetDailyLimit(ctx, rc.RailName, rc.DailyLimit.Float64()); err != nil {
				log.Printf("[RailRegistry] seed reset failed for %s: %v", rc.RailName, err)
			}
		}
	}
	return nil
}

func (r *Registry) Get(name string) (domain.RailConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.configs[name]
	return rc, ok
}

func (r *Registry) List() []domain.RailConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RailConfig, 0, len(r.configs))
	for _, rc := range r.configs {
		if rc.IsActive {
			out = append(out, rc)
		}
	}
	return out
}

// SetActive enables or disables a rail for PDR eligibility filtering.
func (r *Registry) SetActive(ctx context.Context, name string, active bool) error {
	r.mu.Lock()
	rc, ok := r.configs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("rail not found: %s", name)
	}
	rc.IsActive = active
	r.configs[name] = rc
	r.mu.Unlock()

	return r.relStore.UpsertRailConfig(ctx, rc)
}

// TryDebit attempts to reserve amount against rail's remaining daily
// limit. A false result means the rail must be excluded from this
// line's eligible set (spec.md §4.4 hard constraint). With a nil
// limiter it only compares amount against the rail's
// DailyLimitRemaining; nothing is decremented.
func (r *Registry) TryDebit(ctx context.Context, rail string, amount domain.Amount) (bool, error) {
	r.mu.RLock()
	rc, ok := r.configs[rail]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("rail not found: %s", rail)
	}
	if r.limiter == nil {
		return rc.DailyLimitRemaining.GTE(amount), nil
	}
	return r.limiter.DebitDailyLimit(ctx, rail, amount.Float64(), rc.DailyLimit.Float64())
}

// StartDailyReset schedules the midnight-local reset of every rail's
// daily_limit_remaining via robfig/cron, following the teacher's
// pattern of a single background scheduler owned by the manager.
func (r *Registry) StartDailyReset(ctx context.Context) error {
	_, err := r.cron.AddFunc("0 0 * * *", func() {
		r.mu.RLock()
		configs := make([]domain.RailConfig, 0, len(r.configs))
		for _, rc := range r.configs {
			configs = append(configs, rc)
		}
		r.mu.RUnlock()

		for _, rc := range configs {
			if r.limiter != nil {
				if err := r.limiter.ResetDailyLimit(ctx, rc.RailName, rc.DailyLimit.Float64()); err != nil {
					log.Printf("[RailRegistry] daily reset failed for %s: %v", rc.RailName, err)
					continue
				}
			}
			r.mu.Lock()
			rc.DailyLimitRemaining = rc.DailyLimit
			r.configs[rc.RailName] = rc
			r.mu.Unlock()
			log.Printf("[RailRegistry] daily limit reset for %s", rc.RailName)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule daily reset: %w", err)
	}
	r.cron.Start()
	return nil
}

func (r *Registry) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// InWorkingHours reports whether ts falls within rail's working-hours
// window (spec.md §4.4: RTGS cutoff at 16:30:00 local, inclusive of the
// exact second and exclusive one second past it). A window where
// Start > End wraps past midnight: times at or after Start OR at or
// before End are admitted.
func InWorkingHours(wh domain.WorkingHours, ts time.Time) bool {
	if len(wh.Weekdays) > 0 && !wh.Weekdays[ts.Weekday()] {
		return false
	}
	minutes := ts.Hour()*60 + ts.Minute()

	if wh.Start <= wh.End {
		if minutes < wh.Start || minutes > wh.End {
			return false
		}
		if minutes == wh.End && ts.Second() > 0 {
			return false
		}
		return true
	}

	// overnight window: admitted unless strictly between End and Start
	if minutes > wh.End && minutes < wh.Start {
		return false
	}
	if minutes == wh.End && ts.Second() > 0 {
		return false
	}
	return true
}
