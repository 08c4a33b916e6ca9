package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trend-reel/internal/media"
)

// JS entry points exposed by the visualization page in capture mode.
const (
	jsInitialize = `(start, preRoll) => window.initializeToFrame(start, preRoll)`
	jsAdvance    = `() => window.advanceFrame()`
)

// FrameEncoder consumes frames in order. Close ends the stream and reports
// whether a playable file was produced.
type FrameEncoder interface {
	WriteFrame(frame []byte) error
	Close() error
}

// EncoderStarter starts a FrameEncoder writing to output.
type EncoderStarter func(ctx context.Context, output string, spec media.StreamSpec) (FrameEncoder, error)

// FFmpegEncoders adapts media.FFmpeg to an EncoderStarter.
func FFmpegEncoders(f *media.FFmpeg) EncoderStarter {
	return func(ctx context.Context, output string, spec media.StreamSpec) (FrameEncoder, error) {
		enc, err := f.StartEncoder(ctx, output, spec)
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
}

// WorkerConfig holds the per-render settings shared by all chunks.
type WorkerConfig struct {
	Viewport     Viewport
	FPS          int
	Stagger      time.Duration
	ReadyTimeout time.Duration
}

// Worker renders one chunk at a time with its own browser and encoder.
type Worker struct {
	engine   Engine
	encoders EncoderStarter
	cfg      WorkerConfig
	log      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorker returns a Worker.
func NewWorker(engine Engine, encoders EncoderStarter, cfg WorkerConfig, log *slog.Logger) *Worker {
	return &Worker{engine: engine, encoders: encoders, cfg: cfg, log: log, sleep: sleepCtx}
}

// RenderChunk renders t.Frames into t.Output. Launches are staggered by chunk
// index. Any failure, including a panic inside the browser driver, is
// returned as an error and never propagates further.
func (w *Worker) RenderChunk(ctx context.Context, t Task) (err error) {
	log := w.log.With(slog.String("group", t.Group), slog.String("date", t.Date), slog.Int("chunk", t.Chunk))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunk %d: worker panic: %v", t.Chunk, r)
		}
		if err != nil {
			log.Warn("chunk failed", slog.String("error", err.Error()))
		}
	}()

	if err := w.sleep(ctx, time.Duration(t.Chunk)*w.cfg.Stagger); err != nil {
		return err
	}

	pw, ph := w.cfg.Viewport.Pixels()
	enc, err := w.encoders(ctx, t.Output, media.StreamSpec{FPS: w.cfg.FPS, Width: pw, Height: ph})
	if err != nil {
		return fmt.Errorf("chunk %d: %w", t.Chunk, err)
	}

	start := time.Now()
	driveErr := w.drive(ctx, t, enc)
	encErr := enc.Close()
	if driveErr != nil {
		return fmt.Errorf("chunk %d: %w", t.Chunk, driveErr)
	}
	if encErr != nil {
		return fmt.Errorf("chunk %d: %w", t.Chunk, encErr)
	}

	log.Info("chunk rendered",
		slog.Int("frames", t.Frames.Len()),
		slog.Int("pre_roll", t.PreRoll),
		slog.Int("duration_ms", int(time.Since(start).Milliseconds())))
	return nil
}

// drive runs the browser through the chunk and feeds every captured frame to
// enc in frame order.
func (w *Worker) drive(ctx context.Context, t Task, enc FrameEncoder) (err error) {
	// a panic here must still let RenderChunk close the encoder
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("browser driver panic: %v", r)
		}
	}()

	scripts := []string{
		"window.INJECTED_DATA = " + string(t.Data) + ";",
		"window.INJECTED_CONFIG = " + string(t.Config) + ";",
	}
	page, err := w.engine.Launch(ctx, w.cfg.Viewport, scripts)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := page.Navigate(t.URL); err != nil {
		return err
	}
	if err := page.WaitReady(w.cfg.ReadyTimeout); err != nil {
		return err
	}
	if err := page.Eval(jsInitialize, t.Frames.Start, t.PreRoll); err != nil {
		return fmt.Errorf("initialize to frame %d: %w", t.Frames.Start, err)
	}

	for i := t.Frames.Start; i < t.Frames.End; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := page.Eval(jsAdvance); err != nil {
			return fmt.Errorf("advance frame %d: %w", i, err)
		}
		frame, err := page.Capture()
		if err != nil {
			return fmt.Errorf("capture frame %d: %w", i, err)
		}
		if len(frame) == 0 {
			return fmt.Errorf("capture frame %d: %w", i, errEmptyFrame)
		}
		if err := enc.WriteFrame(frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

var errEmptyFrame = errors.New("empty image")

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
