package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trend-reel/internal/media"
)

// fakePage simulates the visualization page: frame counter advanced by
// advanceFrame, captured as "frame-<n>" images.
type fakePage struct {
	mu          sync.Mutex
	navigated   string
	initialized []any
	frame       int
	evalErrAt   int
	notReady    bool
	panicAt     int
	closed      bool
}

func (p *fakePage) Navigate(url string) error {
	p.navigated = url
	return nil
}

func (p *fakePage) WaitReady(timeout time.Duration) error {
	if p.notReady {
		return fmt.Errorf("%w after %s", ErrNotReady, timeout)
	}
	return nil
}

func (p *fakePage) Eval(js string, args ...any) error {
	switch js {
	case jsInitialize:
		p.initialized = args
		p.frame = args[0].(int)
	case jsAdvance:
		if p.panicAt > 0 && p.frame == p.panicAt {
			panic("protocol desync")
		}
		if p.evalErrAt > 0 && p.frame == p.evalErrAt {
			return errors.New("script error")
		}
		p.frame++
	default:
		return fmt.Errorf("unexpected script %q", js)
	}
	return nil
}

func (p *fakePage) Capture() ([]byte, error) {
	return []byte(fmt.Sprintf("frame-%d;", p.frame-1)), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeEngine struct {
	mu       sync.Mutex
	page     func() *fakePage
	launched []*fakePage
	scripts  [][]string
	err      error
}

func (e *fakeEngine) Launch(_ context.Context, _ Viewport, scripts []string) (Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	p := &fakePage{}
	if e.page != nil {
		p = e.page()
	}
	e.launched = append(e.launched, p)
	e.scripts = append(e.scripts, scripts)
	return p, nil
}

// fileEncoder writes frames straight to its output file.
type fileEncoder struct {
	f        *os.File
	closeErr error
}

func (e *fileEncoder) WriteFrame(b []byte) error {
	_, err := e.f.Write(b)
	return err
}

func (e *fileEncoder) Close() error {
	if err := e.f.Close(); err != nil {
		return err
	}
	return e.closeErr
}

func fileEncoders(closeErr error) EncoderStarter {
	return func(_ context.Context, output string, _ media.StreamSpec) (FrameEncoder, error) {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		return &fileEncoder{f: f, closeErr: closeErr}, nil
	}
}

// fakeRenderer records every task it receives and fails according to fail.
type fakeRenderer struct {
	mu       sync.Mutex
	calls    map[int][]Task
	fail     func(chunk, attempt int) bool
	inFlight int
	maxSeen  int
}

func newFakeRenderer(fail func(chunk, attempt int) bool) *fakeRenderer {
	return &fakeRenderer{calls: map[int][]Task{}, fail: fail}
}

func (r *fakeRenderer) RenderChunk(_ context.Context, t Task) error {
	r.mu.Lock()
	r.calls[t.Chunk] = append(r.calls[t.Chunk], t)
	attempt := len(r.calls[t.Chunk])
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	if r.fail != nil && r.fail(t.Chunk, attempt) {
		return fmt.Errorf("chunk %d attempt %d: boom", t.Chunk, attempt)
	}
	return os.WriteFile(t.Output, []byte(fmt.Sprintf("[%d:%d-%d]", t.Chunk, t.Frames.Start, t.Frames.End)), 0o644)
}

// catConcat joins inputs byte for byte.
type catConcat struct {
	err    error
	inputs []string
	output string
}

func (c *catConcat) Concat(_ context.Context, inputs []string, output string) error {
	c.inputs = append([]string(nil), inputs...)
	c.output = output
	if c.err != nil {
		return c.err
	}
	var b strings.Builder
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		b.Write(data)
	}
	return os.WriteFile(output, []byte(b.String()), 0o644)
}
