package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"trend-reel/internal/assemble"
	"trend-reel/internal/day"
	"trend-reel/internal/history"
	"trend-reel/internal/platform/config"
)

var (
	// ErrUnknownGroup is returned for a group that is not configured.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrInvalidDate is returned for a malformed date.
	ErrInvalidDate = errors.New("invalid date")
)

// Assembler builds the video of one group. *assemble.Assembler implements it.
type Assembler interface {
	Assemble(ctx context.Context, group, reportDate string, snap *history.Snapshot) (assemble.Result, error)
}

// Service applies updates and runs render jobs. Updates and renders of one
// group are serialized through the history lock.
type Service struct {
	groups  map[string]config.Group
	history *history.Service
	asm     Assembler
	jobs    JobRepository
	log     *slog.Logger

	// ctx bounds background jobs; wg tracks them.
	ctx context.Context
	wg  sync.WaitGroup
}

// NewService returns a Service. Background renders stop when ctx is done.
func NewService(ctx context.Context, groups []config.Group, hist *history.Service, asm Assembler, jobs JobRepository, log *slog.Logger) *Service {
	byCode := make(map[string]config.Group, len(groups))
	for _, g := range groups {
		byCode[g.Code] = g
	}
	return &Service{groups: byCode, history: hist, asm: asm, jobs: jobs, log: log, ctx: ctx}
}

func (s *Service) group(code string) (config.Group, error) {
	g, ok := s.groups[code]
	if !ok {
		return config.Group{}, fmt.Errorf("%w: %q", ErrUnknownGroup, code)
	}
	return g, nil
}

// Update records a day's ranking for group and returns the retained dates.
func (s *Service) Update(ctx context.Context, code, date string, items []history.RankedItem) ([]string, error) {
	g, err := s.group(code)
	if err != nil {
		return nil, err
	}
	if !day.Valid(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	unlock := s.history.Lock(code)
	defer unlock()

	snap, err := s.history.Update(ctx, history.Group{Code: g.Code, Project: g.Project}, date, items)
	if err != nil {
		return nil, err
	}
	return snap.Dates, nil
}

// Summary returns the retained dates and daily totals of group.
func (s *Service) Summary(code string) (SnapshotSummary, error) {
	if _, err := s.group(code); err != nil {
		return SnapshotSummary{}, err
	}
	snap, err := s.history.Snapshot(code)
	if err != nil {
		return SnapshotSummary{}, err
	}
	out := SnapshotSummary{Group: code, Dates: snap.Dates, Items: make([]ItemSummary, 0, len(snap.Articles))}
	for title, rec := range snap.Articles {
		out.Items = append(out.Items, ItemSummary{Title: title, DailyRaw: rec.DailyRaw})
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].Title < out.Items[j].Title })
	return out, nil
}

// StartRender queues a render of group's video for date and returns its job.
func (s *Service) StartRender(code, date string) (Job, error) {
	if _, err := s.group(code); err != nil {
		return Job{}, err
	}
	if !day.Valid(date) {
		return Job{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	job := Job{ID: JobID(uuid.NewString()), Group: code, Date: date}
	if err := s.jobs.Create(job); err != nil {
		return Job{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job.ID, code, date)
	}()

	created, _ := s.jobs.Get(job.ID)
	return created, nil
}

// Job returns the job with id.
func (s *Service) Job(id JobID) (Job, bool) {
	return s.jobs.Get(id)
}

// ActiveJobs returns the number of render jobs not yet finished.
func (s *Service) ActiveJobs() int {
	return s.jobs.ActiveCount()
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runJob(id JobID, code, date string) {
	log := s.log.With(slog.String("job_id", string(id)), slog.String("group", code), slog.String("date", date))

	unlock := s.history.Lock(code)
	defer unlock()
	_ = s.jobs.Transition(id, JobRunning, "", false, "")
	log.Info("render job started")

	fail := func(err error) {
		log.Error("render job failed", slog.String("error", err.Error()))
		_ = s.jobs.Transition(id, JobFailed, "", false, err.Error())
	}

	snap, err := s.history.Snapshot(code)
	if err != nil {
		fail(err)
		return
	}
	res, err := s.asm.Assemble(s.ctx, code, date, snap)
	if err != nil {
		fail(err)
		return
	}
	if _, err := assemble.CleanupOldVideos(res.Output); err != nil {
		log.Warn("cleaning old videos failed", slog.String("error", err.Error()))
	}
	_ = s.jobs.Transition(id, JobDone, res.Output, res.Silent, "")
	log.Info("render job finished", slog.String("output", res.Output))
}
