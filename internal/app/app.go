// Package app wires the configured components into a runnable service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"trend-reel/internal/assemble"
	"trend-reel/internal/history"
	"trend-reel/internal/media"
	"trend-reel/internal/pageviews"
	"trend-reel/internal/pipeline"
	"trend-reel/internal/platform/config"
	"trend-reel/internal/platform/metrics"
	"trend-reel/internal/render"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config    config.Config
	Pageviews *pageviews.Client
	History   *history.Service
	Renderer  *render.Orchestrator
	Assembler *assemble.Assembler
	Runner    *pipeline.Runner
}

// New builds every component from cfg. m may be nil.
func New(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*App, error) {
	v := cfg.Video
	pageBase, err := fileURL(filepath.Join(cfg.DocsDir, "index.html"))
	if err != nil {
		return nil, err
	}

	pv := pageviews.NewClient(cfg.APIBase, cfg.UserAgent, &http.Client{Timeout: 30 * time.Second})
	hist := history.NewService(history.NewFileStore(cfg.DataDir), pv, v.RetainedDates, log, m)

	ff := media.New(v.FFmpegPath, v.FFprobePath, log)
	worker := render.NewWorker(
		render.NewRodEngine(v.BrowserBin, v.Headless, v.JPEGQuality, log),
		render.FFmpegEncoders(ff),
		render.WorkerConfig{
			Viewport:     render.Viewport{Width: v.Width, Height: v.Height, Scale: v.Scale},
			FPS:          v.FPS,
			Stagger:      v.StaggerDelay,
			ReadyTimeout: v.ReadyTimeout,
		},
		log,
	)
	orch := render.NewOrchestrator(worker, ff, render.Options{
		Workers:       v.Workers,
		MaxAttempts:   v.MaxAttempts,
		TotalFrames:   v.TotalFramesPerDay(),
		PreRollFactor: v.PreRollFactor,
	}, log, m)

	asm := assemble.New(orch, ff, assemble.Options{
		VideoDir:     cfg.VideoDir,
		MusicDir:     cfg.MusicDir,
		PageBase:     pageBase,
		WindowDays:   v.WindowDays,
		RefreshDays:  v.RefreshDays,
		AudioBitrate: v.AudioBitrate,
		Extensions:   v.MusicExtension,
		Page:         initialPageConfig(cfg),
	}, log, m)

	runner := pipeline.NewRunner(cfg.Groups, pv, pv, hist, asm, pipeline.Options{
		DataDir:       cfg.DataDir,
		VideoDir:      cfg.VideoDir,
		ReportDir:     cfg.ReportDir,
		TopN:          v.TopN,
		KeepDateDirs:  v.KeepDateDirs,
		BaseThreshold: v.BaseThreshold,
	}, log)

	return &App{
		Config:    cfg,
		Pageviews: pv,
		History:   hist,
		Renderer:  orch,
		Assembler: asm,
		Runner:    runner,
	}, nil
}

// initialPageConfig is the last written page config, or neutral factors.
func initialPageConfig(cfg config.Config) render.PageConfig {
	if pc, err := pipeline.ReadPageConfig(filepath.Join(cfg.DataDir, pipeline.ConfigFile)); err == nil {
		return pc
	}
	pc := render.PageConfig{BaseThreshold: cfg.Video.BaseThreshold, ScalingFactors: map[string]float64{}}
	for _, g := range cfg.Groups {
		pc.ScalingFactors[g.Code] = 1.0
	}
	return pc
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
