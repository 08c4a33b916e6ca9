package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"trend-reel/internal/render"
)

// segmentRenderer writes "<date>;" to each requested segment.
type segmentRenderer struct {
	mu       sync.Mutex
	requests []render.DayRequest
	fail     map[string]bool
}

func (r *segmentRenderer) RenderDay(_ context.Context, req render.DayRequest) (render.DayResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.fail[req.Date] {
		return render.DayResult{State: render.StateFailed}, fmt.Errorf("%w: %s", render.ErrSegmentUnavailable, req.Date)
	}
	return render.DayResult{State: render.StateDone}, os.WriteFile(req.Output, []byte(req.Date+";"), 0o644)
}

func (r *segmentRenderer) dates() []string {
	var out []string
	for _, req := range r.requests {
		out = append(out, req.Date)
	}
	return out
}

type mixCall struct {
	video, audio     string
	offset, duration float64
	bitrate, output  string
}

// fakeMedia joins by concatenation and reads durations from a table keyed by
// base name; unknown files fail.
type fakeMedia struct {
	durations map[string]float64
	concatErr error
	mixErr    error
	joined    []string
	measured  []string
	mixes     []mixCall
}

func (m *fakeMedia) Concat(_ context.Context, inputs []string, output string) error {
	m.joined = append([]string(nil), inputs...)
	if m.concatErr != nil {
		return m.concatErr
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

func (m *fakeMedia) Duration(_ context.Context, path string) (float64, error) {
	m.measured = append(m.measured, path)
	if d, ok := m.durations[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, errors.New("invalid data found when processing input")
}

func (m *fakeMedia) MixAudio(_ context.Context, video, audio string, offset, duration float64, bitrate, output string) error {
	m.mixes = append(m.mixes, mixCall{video, audio, offset, duration, bitrate, output})
	if m.mixErr != nil {
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		return m.mixErr
	}
	data, err := os.ReadFile(video)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append(data, []byte("+"+filepath.Base(audio))...), 0o644)
}
