package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"trend-reel/internal/platform/metrics"
)

var (
	// ErrSegmentUnavailable is returned when a day segment could not be
	// produced. Chunk files are left in the working directory.
	ErrSegmentUnavailable = errors.New("render: segment unavailable")

	// ErrChunkFailed marks chunks that exhausted their attempts.
	ErrChunkFailed = errors.New("render: chunk failed")
)

// State is the lifecycle state of a day render.
type State int

const (
	StatePending State = iota
	StateRunning
	StateRetry
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetry:
		return "retry"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChunkRenderer renders a single task. *Worker implements it.
type ChunkRenderer interface {
	RenderChunk(ctx context.Context, t Task) error
}

// Concatenator joins files losslessly in the given order.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Options configures the orchestrator.
type Options struct {
	Workers       int
	MaxAttempts   int
	TotalFrames   int
	PreRollFactor float64
}

// DayRequest describes one day segment to render.
type DayRequest struct {
	Group    string
	Date     string
	PrevDate string
	URL      string
	Data     []byte
	Config   []byte
	TempDir  string
	Output   string
}

// DayResult reports how a day render ended.
type DayResult struct {
	State    State
	Attempts int
	Chunks   []string
	Failed   []int
}

// Orchestrator splits a day into chunks, renders them on a bounded pool,
// retries failed chunks and joins the result.
type Orchestrator struct {
	renderer ChunkRenderer
	concat   Concatenator
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewOrchestrator returns an Orchestrator. Zero option values fall back to 2
// workers, 3 attempts and 1440 frames. m may be nil.
func NewOrchestrator(r ChunkRenderer, c Concatenator, opts Options, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.TotalFrames <= 0 {
		opts.TotalFrames = 1440
	}
	if opts.PreRollFactor < 0 {
		opts.PreRollFactor = 0
	}
	return &Orchestrator{renderer: r, concat: c, opts: opts, log: log, metrics: m}
}

// Plan builds the immutable chunk tasks of req. Every chunk after the first
// warms up with pre-roll frames taken from just before its start; the first
// chunk does so only when the page can draw them from the previous day.
func (o *Orchestrator) Plan(req DayRequest) []Task {
	ranges := SplitFrames(o.opts.TotalFrames, o.opts.Workers)
	preRoll := int(float64(ranges[0].Len()) * o.opts.PreRollFactor)

	tasks := make([]Task, len(ranges))
	for i, fr := range ranges {
		pr := preRoll
		if i == 0 && req.PrevDate == "" {
			pr = 0
		}
		tasks[i] = Task{
			Group:   req.Group,
			Date:    req.Date,
			Chunk:   i,
			Frames:  fr,
			PreRoll: pr,
			Output:  filepath.Join(req.TempDir, fmt.Sprintf("chunk_%d.mp4", i)),
			URL:     req.URL,
			Data:    req.Data,
			Config:  req.Config,
		}
	}
	return tasks
}

// RenderDay runs req through PENDING → RUNNING → (RETRY → RUNNING)* → DONE or
// FAILED. Only failed chunks are retried. On DONE the chunks are joined in
// index order and the result replaces req.Output; the working directory is
// then removed. On any failure it is kept, req.Output is left untouched and
// the returned error wraps ErrSegmentUnavailable.
func (o *Orchestrator) RenderDay(ctx context.Context, req DayRequest) (DayResult, error) {
	log := o.log.With(slog.String("group", req.Group), slog.String("date", req.Date))
	o.metrics.RenderStarted()
	defer o.metrics.RenderFinished()

	if err := os.MkdirAll(req.TempDir, 0o755); err != nil {
		return DayResult{State: StateFailed}, fmt.Errorf("%w: %v", ErrSegmentUnavailable, err)
	}

	tasks := o.Plan(req)
	res := DayResult{State: StatePending}
	for _, t := range tasks {
		res.Chunks = append(res.Chunks, t.Output)
	}

	pending := tasks
	for {
		switch res.State {
		case StatePending:
			log.Info("rendering day",
				slog.String("prev_date", req.PrevDate),
				slog.Int("chunks", len(tasks)),
				slog.Int("pre_roll", tasks[len(tasks)-1].PreRoll))
			res.State = StateRunning

		case StateRunning:
			res.Attempts++
			failed := o.runBatch(ctx, pending)
			switch {
			case len(failed) == 0:
				res.State = StateDone
			case res.Attempts < o.opts.MaxAttempts && ctx.Err() == nil:
				pending = failed
				res.State = StateRetry
			default:
				pending = failed
				res.State = StateFailed
			}

		case StateRetry:
			log.Warn("retrying failed chunks",
				slog.Int("failed", len(pending)),
				slog.Int("attempt", res.Attempts+1),
				slog.Int("max_attempts", o.opts.MaxAttempts))
			res.State = StateRunning

		case StateFailed:
			for _, t := range pending {
				res.Failed = append(res.Failed, t.Chunk)
			}
			log.Error("day render failed",
				slog.Int("failed_chunks", len(res.Failed)),
				slog.Int("attempts", res.Attempts),
				slog.String("temp_dir", req.TempDir))
			return res, fmt.Errorf("%w: %s/%s: %d chunks: %w",
				ErrSegmentUnavailable, req.Group, req.Date, len(res.Failed), ErrChunkFailed)

		case StateDone:
			if err := o.join(ctx, res.Chunks, req.TempDir, req.Output); err != nil {
				res.State = StateFailed
				log.Error("joining chunks failed",
					slog.String("error", err.Error()),
					slog.String("temp_dir", req.TempDir))
				return res, fmt.Errorf("%w: %s/%s: %w", ErrSegmentUnavailable, req.Group, req.Date, err)
			}
			if err := os.RemoveAll(req.TempDir); err != nil {
				log.Warn("removing temp dir failed", slog.String("error", err.Error()))
			}
			log.Info("day segment ready", slog.String("output", req.Output), slog.Int("attempts", res.Attempts))
			return res, nil
		}
	}
}

// runBatch renders tasks with at most Workers in flight and returns the
// failed ones in chunk order.
func (o *Orchestrator) runBatch(ctx context.Context, tasks []Task) []Task {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []Task
	)
	g.SetLimit(o.opts.Workers)
	for _, t := range tasks {
		g.Go(func() error {
			err := o.renderer.RenderChunk(ctx, t)
			o.metrics.ObserveChunk(t.Group, err == nil)
			if err != nil {
				mu.Lock()
				failed = append(failed, t)
				mu.Unlock()
			}
			// failures are collected, never returned: siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i].Chunk < failed[j].Chunk })
	return failed
}

// join concatenates chunks inside tempDir and moves the result onto output
// only on success, so a previous segment at output survives a failed join.
func (o *Orchestrator) join(ctx context.Context, chunks []string, tempDir, output string) error {
	staged := filepath.Join(tempDir, "segment.mp4")
	if err := o.concat.Concat(ctx, chunks, staged); err != nil {
		_ = os.Remove(staged)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return os.Rename(staged, output)
}
