// Package assemble builds the published video of a stream-group: a trailing
// window of day segments, each reused from disk or rendered afresh, joined
// into one master and given a background track.
package assemble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"trend-reel/internal/day"
	"trend-reel/internal/history"
	"trend-reel/internal/platform/metrics"
	"trend-reel/internal/render"
)

var (
	// ErrNoHistory is returned when the group has no retained dates.
	ErrNoHistory = errors.New("assemble: no history")

	// ErrNoSegments is returned when no day of the window has a segment.
	ErrNoSegments = errors.New("assemble: no segments")
)

// DayRenderer produces one day segment. *render.Orchestrator implements it.
type DayRenderer interface {
	RenderDay(ctx context.Context, req render.DayRequest) (render.DayResult, error)
}

// Media is the ffmpeg surface the assembler needs. *media.FFmpeg implements it.
type Media interface {
	Concat(ctx context.Context, inputs []string, output string) error
	Duration(ctx context.Context, path string) (float64, error)
	MixAudio(ctx context.Context, video, audio string, offset, duration float64, bitrate, output string) error
}

// Options configures an Assembler.
type Options struct {
	VideoDir     string
	MusicDir     string
	PageBase     string
	WindowDays   int
	RefreshDays  int
	AudioBitrate string
	Extensions   []string
	Page         render.PageConfig

	// Rand picks the track and its offset. Nil uses a randomly seeded source.
	Rand *rand.Rand
}

// Assembler plans the window, renders what is missing and publishes the
// final video.
type Assembler struct {
	renderer DayRenderer
	media    Media
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex
	rand *rand.Rand
}

// New returns an Assembler. Zero option values fall back to a 7-day window,
// a 3-day refresh window and a 192k audio bitrate. m may be nil.
func New(r DayRenderer, md Media, opts Options, log *slog.Logger, m *metrics.Metrics) *Assembler {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	if opts.RefreshDays <= 0 {
		opts.RefreshDays = 3
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = "192k"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".flac", ".mp3", ".wav", ".m4a", ".ogg"}
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Assembler{renderer: r, media: md, opts: opts, log: log, metrics: m, rand: rnd}
}

// SetPageConfig replaces the configuration injected into future renders.
func (a *Assembler) SetPageConfig(pc render.PageConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.Page = pc
}

// Outcome of one window day.
type Outcome string

const (
	OutcomeRendered Outcome = "rendered"
	OutcomeReused   Outcome = "reused"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// DayPlan is the decision taken for one day of the window.
type DayPlan struct {
	Date     string
	PrevDate string
	Segment  string
	Force    bool
	Skip     string
}

// Result summarizes one assembly.
type Result struct {
	Output   string
	Segments []string
	Days     map[string]Outcome
	Track    string
	Silent   bool
}

// SegmentPath is where the segment of date is cached.
func (a *Assembler) SegmentPath(group, date string) string {
	return filepath.Join(a.opts.VideoDir, date, group, fmt.Sprintf("segment_%s.mp4", date))
}

// FinalPath is where the published video of reportDate goes.
func (a *Assembler) FinalPath(group, reportDate string) string {
	return filepath.Join(a.opts.VideoDir, fmt.Sprintf("%s_%s.mp4", reportDate, group))
}

func (a *Assembler) dayTempDir(group, date string) string {
	return filepath.Join(a.opts.VideoDir, "temp", fmt.Sprintf("%s_%s", date, group))
}

func (a *Assembler) finalTempDir(group, reportDate string) string {
	return filepath.Join(a.opts.VideoDir, "temp", fmt.Sprintf("final_%s_%s", reportDate, group))
}

// Plan decides, for each day of the window ending at reportDate, whether it
// is rendered, reused or skipped.
func (a *Assembler) Plan(group, reportDate string, snap *history.Snapshot) ([]DayPlan, error) {
	dates, err := day.Range(reportDate, a.opts.WindowDays)
	if err != nil {
		return nil, err
	}
	refreshFrom, err := day.Add(reportDate, -(a.opts.RefreshDays - 1))
	if err != nil {
		return nil, err
	}

	plans := make([]DayPlan, 0, len(dates))
	for i, d := range dates {
		p := DayPlan{Date: d, Segment: a.SegmentPath(group, d)}
		if i > 0 {
			p.PrevDate = dates[i-1]
		} else if before := day.MustAdd(d, -1); snap.HasDate(before) {
			p.PrevDate = before
		}
		p.Force = d >= refreshFrom || !exists(p.Segment)

		switch {
		case !snap.HasDate(d):
			p.Skip = "no history"
		case p.Force && p.PrevDate != "" && !snap.HasDate(p.PrevDate):
			p.Skip = "no history for predecessor " + p.PrevDate
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Assemble renders or reuses the window's segments, joins them and mixes in
// a track. A day that cannot be rendered is omitted; the call fails only when
// no segment exists or the master cannot be built.
func (a *Assembler) Assemble(ctx context.Context, group, reportDate string, snap *history.Snapshot) (Result, error) {
	log := a.log.With(slog.String("group", group), slog.String("report_date", reportDate))
	if snap == nil || len(snap.Dates) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoHistory, group)
	}
	plans, err := a.Plan(group, reportDate, snap)
	if err != nil {
		return Result{}, err
	}

	a.mu.Lock()
	page := a.opts.Page
	a.mu.Unlock()
	data, err := json.Marshal(snap)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	cfg, err := json.Marshal(page)
	if err != nil {
		return Result{}, fmt.Errorf("encode page config: %w", err)
	}

	res := Result{Output: a.FinalPath(group, reportDate), Days: make(map[string]Outcome, len(plans))}
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		outcome := a.segment(ctx, log, group, p, data, cfg)
		res.Days[p.Date] = outcome
		a.metrics.IncSegments(group, string(outcome))
		if exists(p.Segment) {
			res.Segments = append(res.Segments, p.Segment)
		}
	}
	if len(res.Segments) == 0 {
		return res, fmt.Errorf("%w: %s %s", ErrNoSegments, group, reportDate)
	}

	tmp := a.finalTempDir(group, reportDate)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return res, err
	}
	silent := filepath.Join(tmp, "video_no_audio.mp4")
	log.Info("joining segments", slog.Int("segments", len(res.Segments)))
	if err := a.media.Concat(ctx, res.Segments, silent); err != nil {
		return res, fmt.Errorf("join %s %s: %w", group, reportDate, err)
	}

	track, err := a.addAudio(ctx, log, silent, res.Output)
	if err != nil {
		return res, err
	}
	res.Track = track
	res.Silent = track == ""
	if res.Silent {
		a.metrics.IncAudioFallbacks(group)
	}
	if err := os.RemoveAll(tmp); err != nil {
		log.Warn("removing temp dir failed", slog.String("error", err.Error()))
	}

	a.metrics.IncVideosAssembled(group)
	log.Info("video ready", slog.String("output", res.Output), slog.Bool("silent", res.Silent))
	return res, nil
}

func (a *Assembler) segment(ctx context.Context, log *slog.Logger, group string, p DayPlan, data, cfg []byte) Outcome {
	log = log.With(slog.String("date", p.Date))
	if p.Skip != "" {
		log.Warn("skipping day", slog.String("reason", p.Skip))
		return OutcomeSkipped
	}
	if !p.Force {
		log.Info("using cached segment")
		return OutcomeReused
	}

	req := render.DayRequest{
		Group:    group,
		Date:     p.Date,
		PrevDate: p.PrevDate,
		URL:      render.PageURL(a.opts.PageBase, group, p.Date, p.PrevDate),
		Data:     data,
		Config:   cfg,
		TempDir:  a.dayTempDir(group, p.Date),
		Output:   p.Segment,
	}
	if err := os.MkdirAll(filepath.Dir(p.Segment), 0o755); err != nil {
		log.Error("creating segment dir failed", slog.String("error", err.Error()))
		return OutcomeFailed
	}
	if _, err := a.renderer.RenderDay(ctx, req); err != nil {
		log.Error("rendering segment failed", slog.String("error", err.Error()))
		return OutcomeFailed
	}
	return OutcomeRendered
}

func exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
