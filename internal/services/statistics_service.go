package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

// RangeReader is the read side the statistics engine queries.
type RangeReader interface {
	ListTransactionsInRange(ctx context.Context, userID string, r core.DateRange, accountID int64) ([]core.Transaction, error)
}

// StatisticsService builds period reports from stored transactions. It never
// writes. Reports are cached per user until that user's next ledger write.
type StatisticsService struct {
	reader RangeReader
	cache  cache.Cache[any]
	group  singleflight.Group
	logger *log.Logger

	// gens counts invalidations per user so a report computed across a
	// write is not cached. mu also guards cache writes against Invalidate.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewStatisticsService(reader RangeReader, logger *log.Logger) *StatisticsService {
	if logger == nil {
		logger = log.Discard()
	}
	return &StatisticsService{
		reader: reader,
		logger: logger.WithComponent(log.ComponentStatistics),
		gens:   map[string]uint64{},
	}
}

// WithCache enables report caching.
func (s *StatisticsService) WithCache(c cache.Cache[any]) *StatisticsService {
	s.cache = c
	return s
}

// Invalidate drops every cached report of userID.
func (s *StatisticsService) Invalidate(userID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.gens[userID]++
	n := s.cache.DeletePrefix(userPrefix(userID))
	s.mu.Unlock()
	if n > 0 {
		s.logger.Debug("Statistics cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

// InvalidateOnCommit adapts Invalidate to a ledger commit hook.
func (s *StatisticsService) InvalidateOnCommit(_ context.Context, _ string, _ core.Transaction, userID string) {
	s.Invalidate(userID)
}

func userPrefix(userID string) string {
	return userID + "\x00"
}

func (s *StatisticsService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// storeIfCurrent caches v unless userID was invalidated after gen was read.
// Holding mu across the check and the Set keeps Invalidate from slipping in
// between them.
func (s *StatisticsService) storeIfCurrent(userID string, gen uint64, key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] == gen {
		s.cache.Set(key, v)
	}
}

// Monthly reports [1st of month, 1st of next month) with a sub-breakdown
// into 7-day windows counted from the 1st.
func (s *StatisticsService) Monthly(ctx context.Context, userID string, year, month int) (core.MonthlyStatistics, error) {
	r, err := core.MonthRange(year, month)
	if err != nil {
		return core.MonthlyStatistics{}, err
	}
	key := fmt.Sprintf("%smonthly:%04d-%02d", userPrefix(userID), year, month)
	v, err := s.cached(ctx, userID, key, func() (any, error) {
		txs, err := s.reader.ListTransactionsInRange(ctx, userID, r, 0)
		if err != nil {
			return nil, err
		}
		return MonthlyReport(year, month, r, txs), nil
	})
	if err != nil {
		return core.MonthlyStatistics{}, fmt.Errorf("monthly statistics %d-%02d: %w", year, month, err)
	}
	return v.(core.MonthlyStatistics), nil
}

// Weekly reports one ISO week, Monday to Sunday, with seven daily entries.
func (s *StatisticsService) Weekly(ctx context.Context, userID string, year, week int) (core.WeeklyStatistics, error) {
	r, err := core.ISOWeekRange(year, week)
	if err != nil {
		return core.WeeklyStatistics{}, err
	}
	key := fmt.Sprintf("%sweekly:%04d-W%02d", userPrefix(userID), year, week)
	v, err := s.cached(ctx, userID, key, func() (any, error) {
		txs, err := s.reader.ListTransactionsInRange(ctx, userID, r, 0)
		if err != nil {
			return nil, err
		}
		return WeeklyReport(year, week, r, txs), nil
	})
	if err != nil {
		return core.WeeklyStatistics{}, fmt.Errorf("weekly statistics %d-W%02d: %w", year, week, err)
	}
	return v.(core.WeeklyStatistics), nil
}

// Yearly reports a calendar year with twelve monthly entries.
func (s *StatisticsService) Yearly(ctx context.Context, userID string, year int) (core.YearlyStatistics, error) {
	r, err := core.YearRange(year)
	if err != nil {
		return core.YearlyStatistics{}, err
	}
	key := fmt.Sprintf("%syearly:%04d", userPrefix(userID), year)
	v, err := s.cached(ctx, userID, key, func() (any, error) {
		txs, err := s.reader.ListTransactionsInRange(ctx, userID, r, 0)
		if err != nil {
			return nil, err
		}
		return YearlyReport(year, txs), nil
	})
	if err != nil {
		return core.YearlyStatistics{}, fmt.Errorf("yearly statistics %d: %w", year, err)
	}
	return v.(core.YearlyStatistics), nil
}

// cached serves key from the cache, coalescing concurrent misses.
func (s *StatisticsService) cached(ctx context.Context, userID, key string, build func() (any, error)) (any, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}
	start := time.Now()
	gen := s.generation(userID)
	// A caller arriving after a write must not join a fill started before it.
	flight := fmt.Sprintf("%s#%d", key, gen)
	v, err, shared := s.group.Do(flight, func() (any, error) {
		v, err := build()
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.storeIfCurrent(userID, gen, key, v)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Statistics computed",
		"key", key, "shared", shared, log.FieldDuration, time.Since(start).Milliseconds())
	return v, nil
}

// MonthlyReport aggregates txs, all dated inside r, into a monthly report.
func MonthlyReport(year, month int, r core.DateRange, txs []core.Transaction) core.MonthlyStatistics {
	windows := r.Windows(7)
	weeks := make([]core.WeekBucket, 0, len(windows))
	for i, w := range windows {
		weeks = append(weeks, core.WeekBucket{
			Week:      i + 1,
			StartDate: w.FirstDay(),
			EndDate:   w.LastDay(),
			Flow:      core.FlowWithin(txs, w),
		})
	}
	return core.MonthlyStatistics{
		Year:            year,
		Month:           month,
		Summary:         core.Summarize(txs),
		WeeklyBreakdown: weeks,
	}
}

// WeeklyReport aggregates txs, all dated inside r, into a weekly report.
func WeeklyReport(year, week int, r core.DateRange, txs []core.Transaction) core.WeeklyStatistics {
	days := r.Days()
	daily := make([]core.DayBucket, 0, len(days))
	for _, d := range days {
		daily = append(daily, core.DayBucket{
			Date: d.FirstDay(),
			Flow: core.FlowWithin(txs, d),
		})
	}
	return core.WeeklyStatistics{
		Year:           year,
		Week:           week,
		StartDate:      r.FirstDay(),
		EndDate:        r.LastDay(),
		Summary:        core.Summarize(txs),
		DailyBreakdown: daily,
	}
}

// YearlyReport aggregates txs of one year into twelve zero-filled months.
func YearlyReport(year int, txs []core.Transaction) core.YearlyStatistics {
	months := make([]core.MonthBucket, 12)
	buckets := make([][]core.Transaction, 12)
	for _, tx := range txs {
		if tx.TransactionDate.Year() != year {
			continue
		}
		m := int(tx.TransactionDate.Month()) - 1
		buckets[m] = append(buckets[m], tx)
	}
	for i := range months {
		months[i] = core.MonthBucket{Month: i + 1, Flow: core.SumFlow(buckets[i])}
	}
	return core.YearlyStatistics{
		Year:             year,
		Summary:          core.Summarize(txs),
		MonthlyBreakdown: months,
	}
}
