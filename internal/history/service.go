package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"trend-reel/internal/curve"
	"trend-reel/internal/day"
	"trend-reel/internal/platform/metrics"
)

// ErrInvalidItem is returned for a ranked item with an empty title or a
// negative count.
var ErrInvalidItem = errors.New("history: invalid item")

// Fetcher is the metrics collaborator: daily totals of one item between two
// dates, both inclusive.
type Fetcher interface {
	DailyCounts(ctx context.Context, project, title, from, to string) (map[string]int, error)
}

// Group identifies a stream-group: its key in the store and the project the
// Fetcher queries.
type Group struct {
	Code    string
	Project string
}

// Service applies the daily update and delegates persistence to Store.
// Updates of one group are serialized; different groups proceed independently.
type Service struct {
	store   Store
	fetcher Fetcher
	window  int
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService returns a Service that keeps at most window dates per group.
// If window <= 0, DefaultWindow is used. m may be nil.
func NewService(store Store, fetcher Fetcher, window int, log *slog.Logger, m *metrics.Metrics) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		window:  window,
		log:     log,
		metrics: m,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock acquires the group's single-writer lock and returns its release func.
// Callers that update and then render a group hold it across both steps.
func (s *Service) Lock(group string) func() {
	s.mu.Lock()
	l, ok := s.locks[group]
	if !ok {
		l = &sync.Mutex{}
		s.locks[group] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Snapshot loads the current snapshot of group without changing it.
func (s *Service) Snapshot(group string) (*Snapshot, error) {
	return s.store.Load(group)
}

// Update registers asOf, merges freshly fetched totals for the ranked items
// (and a short maintenance refresh for items that dropped out of the
// ranking), recomputes the curves of the last three days, prunes curves that
// left the window and persists the result. The caller must hold Lock(group).
//
// Fetch failures are logged and leave the item's fetched dates untouched; the
// ranked Views for asOf are recorded regardless.
func (s *Service) Update(ctx context.Context, g Group, asOf string, items []RankedItem) (*Snapshot, error) {
	if !day.Valid(asOf) {
		return nil, fmt.Errorf("update %s: invalid date %q", g.Code, asOf)
	}
	for i, it := range items {
		if it.Title == "" || it.Views < 0 {
			return nil, fmt.Errorf("update %s: item %d (%q, %d views): %w", g.Code, i, it.Title, it.Views, ErrInvalidItem)
		}
	}
	snap, err := s.store.Load(g.Code)
	if err != nil {
		return nil, err
	}

	snap.registerDate(asOf, s.window)

	yesterday := day.MustAdd(asOf, -1)
	ranked := make(map[string]bool, len(items))
	for _, it := range items {
		ranked[it.Title] = true
	}
	var maintenance []string
	for title, rec := range snap.Articles {
		if ranked[title] {
			continue
		}
		if _, ok := rec.DailyRaw[yesterday]; ok {
			maintenance = append(maintenance, title)
		}
	}

	s.log.Info("updating history",
		slog.String("group", g.Code),
		slog.String("date", asOf),
		slog.Int("ranked", len(items)),
		slog.Int("maintenance", len(maintenance)))

	fetchFrom := day.MustAdd(asOf, -3)
	for _, it := range items {
		rec, ok := snap.Articles[it.Title]
		if !ok {
			rec = newRecord()
			snap.Articles[it.Title] = rec
		}
		s.mergeFetched(ctx, g, rec, it.Title, fetchFrom, asOf)
		rec.DailyRaw[asOf] = it.Views
	}
	for _, title := range maintenance {
		s.mergeFetched(ctx, g, snap.Articles[title], title, yesterday, asOf)
	}

	recalc := []string{day.MustAdd(asOf, -2), yesterday, asOf}
	for _, rec := range snap.Articles {
		for _, d := range recalc {
			if _, ok := rec.DailyRaw[d]; !ok {
				continue
			}
			t, _ := day.Parse(d)
			rec.Minutes[d] = curve.Reconstruct(rec.DailyRaw, t)
		}
	}

	snap.pruneMinutes()

	if err := s.store.Save(g.Code, snap); err != nil {
		return nil, err
	}
	s.metrics.IncHistoryUpdates(g.Code)
	return snap, nil
}

// mergeFetched overlays fetched totals onto rec. Existing dates absent from
// the response are kept.
func (s *Service) mergeFetched(ctx context.Context, g Group, rec *Record, title, from, to string) {
	counts, err := s.fetcher.DailyCounts(ctx, g.Project, title, from, to)
	if err != nil {
		s.metrics.IncFetchErrors(g.Code)
		s.log.Warn("fetch daily counts failed",
			slog.String("group", g.Code),
			slog.String("title", title),
			slog.String("error", err.Error()))
		return
	}
	for d, v := range counts {
		if v < 0 {
			continue
		}
		rec.DailyRaw[d] = v
	}
}
