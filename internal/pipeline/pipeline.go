// Package pipeline runs the daily job: for every stream-group it fetches the
// ranking, updates the history and assembles the video.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trend-reel/internal/assemble"
	"trend-reel/internal/day"
	"trend-reel/internal/history"
	"trend-reel/internal/platform/config"
	"trend-reel/internal/render"
)

// ErrNoRanking is recorded for a group whose ranking is not published yet.
var ErrNoRanking = errors.New("pipeline: no ranking")

// ConfigFile is the name of the page configuration written to the data dir.
const ConfigFile = "config.json"

// Ranker returns the filtered top items of a group for a date.
type Ranker interface {
	TopArticles(ctx context.Context, code, date string, n int) ([]history.RankedItem, error)
}

// Scaler returns per-group color scaling factors.
type Scaler interface {
	ScalingFactors(ctx context.Context, projects map[string]string, now time.Time) (map[string]float64, bool)
}

// Assembler builds the video of one group. *assemble.Assembler implements it.
type Assembler interface {
	Assemble(ctx context.Context, group, reportDate string, snap *history.Snapshot) (assemble.Result, error)
	SetPageConfig(pc render.PageConfig)
}

// Options configures a Runner.
type Options struct {
	DataDir       string
	VideoDir      string
	ReportDir     string
	TopN          int
	KeepDateDirs  int
	BaseThreshold float64
}

// Runner executes the daily job over all configured groups.
type Runner struct {
	groups  []config.Group
	ranker  Ranker
	scaler  Scaler
	history *history.Service
	asm     Assembler
	opts    Options
	log     *slog.Logger
	now     func() time.Time
}

// NewRunner returns a Runner.
func NewRunner(groups []config.Group, ranker Ranker, scaler Scaler, hist *history.Service, asm Assembler, opts Options, log *slog.Logger) *Runner {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.KeepDateDirs <= 0 {
		opts.KeepDateDirs = 15
	}
	return &Runner{
		groups:  groups,
		ranker:  ranker,
		scaler:  scaler,
		history: hist,
		asm:     asm,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Result is the outcome of one group.
type Result struct {
	Group  string                      `json:"group"`
	Items  []history.RankedItem        `json:"items,omitempty"`
	Output string                      `json:"output,omitempty"`
	Silent bool                        `json:"silent,omitempty"`
	Days   map[string]assemble.Outcome `json:"days,omitempty"`
	Err    error                       `json:"-"`
	Error  string                      `json:"error,omitempty"`
}

// Report is the per-run summary written to the report dir.
type Report struct {
	Date    string   `json:"date"`
	Results []Result `json:"results"`
}

// DefaultReportDate is the last complete UTC day before now.
func DefaultReportDate(now time.Time) string {
	return day.Format(now.UTC().AddDate(0, 0, -1))
}

// Run processes every group for reportDate. A failing group is logged and
// recorded in its Result; it never stops the others.
func (r *Runner) Run(ctx context.Context, reportDate string) (Report, error) {
	if !day.Valid(reportDate) {
		return Report{}, fmt.Errorf("run: invalid date %q", reportDate)
	}
	log := r.log.With(slog.String("report_date", reportDate))
	log.Info("run started", slog.Int("groups", len(r.groups)))

	pc := render.PageConfig{BaseThreshold: r.opts.BaseThreshold, ScalingFactors: r.scalingFactors(ctx)}
	if err := WritePageConfig(filepath.Join(r.opts.DataDir, ConfigFile), pc); err != nil {
		log.Error("writing page config failed", slog.String("error", err.Error()))
	}
	r.asm.SetPageConfig(pc)

	rep := Report{Date: reportDate}
	for _, g := range r.groups {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := r.runGroup(ctx, g, reportDate)
		if res.Err != nil {
			res.Error = res.Err.Error()
			log.Error("group failed", slog.String("group", g.Code), slog.String("error", res.Error))
		}
		rep.Results = append(rep.Results, res)
	}

	if r.opts.ReportDir != "" {
		if err := writeJSON(filepath.Join(r.opts.ReportDir, reportDate+".json"), rep); err != nil {
			log.Error("writing report failed", slog.String("error", err.Error()))
		}
	}
	removed, err := assemble.CleanupDateDirs(r.opts.VideoDir, r.opts.KeepDateDirs)
	if err != nil {
		log.Warn("cleaning date dirs failed", slog.String("error", err.Error()))
	}
	log.Info("run finished", slog.Int("removed_dirs", len(removed)))
	return rep, nil
}

func (r *Runner) runGroup(ctx context.Context, g config.Group, reportDate string) Result {
	res := Result{Group: g.Code}
	log := r.log.With(slog.String("group", g.Code))

	items, err := r.ranker.TopArticles(ctx, g.Code, reportDate, r.opts.TopN)
	if err != nil {
		res.Err = fmt.Errorf("ranking: %w", err)
		return res
	}
	if len(items) == 0 {
		res.Err = ErrNoRanking
		return res
	}
	res.Items = items

	unlock := r.history.Lock(g.Code)
	defer unlock()

	snap, err := r.history.Update(ctx, history.Group{Code: g.Code, Project: g.Project}, reportDate, items)
	if err != nil {
		res.Err = fmt.Errorf("history: %w", err)
		return res
	}
	out, err := r.asm.Assemble(ctx, g.Code, reportDate, snap)
	res.Days = out.Days
	if err != nil {
		res.Err = fmt.Errorf("assemble: %w", err)
		return res
	}
	res.Output = out.Output
	res.Silent = out.Silent

	removed, err := assemble.CleanupOldVideos(out.Output)
	if err != nil {
		log.Warn("cleaning old videos failed", slog.String("error", err.Error()))
	}
	for _, p := range removed {
		log.Info("removed old video", slog.String("path", p))
	}
	return res
}

// scalingFactors fetches fresh factors, falling back to the ones in the
// cached page config, then to 1.0 for every group.
func (r *Runner) scalingFactors(ctx context.Context) map[string]float64 {
	projects := make(map[string]string, len(r.groups))
	for _, g := range r.groups {
		projects[g.Code] = g.Project
	}
	if f, ok := r.scaler.ScalingFactors(ctx, projects, r.now()); ok {
		return f
	}

	path := filepath.Join(r.opts.DataDir, ConfigFile)
	if pc, err := ReadPageConfig(path); err == nil && len(pc.ScalingFactors) > 0 {
		r.log.Warn("using cached scaling factors", slog.String("path", path))
		return pc.ScalingFactors
	}

	r.log.Warn("no scaling factors available, using 1.0")
	f := make(map[string]float64, len(projects))
	for code := range projects {
		f[code] = 1.0
	}
	return f
}

// ReadPageConfig loads a page config written by WritePageConfig.
func ReadPageConfig(path string) (render.PageConfig, error) {
	var pc render.PageConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return pc, err
	}
	if err := json.Unmarshal(b, &pc); err != nil {
		return pc, fmt.Errorf("parse %s: %w", path, err)
	}
	return pc, nil
}

// WritePageConfig stores pc for the visualization page.
func WritePageConfig(path string, pc render.PageConfig) error {
	return writeJSON(path, pc)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
