package assemble

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-reel/internal/curve"
	"trend-reel/internal/day"
	"trend-reel/internal/history"
	"trend-reel/internal/platform/logger"
	"trend-reel/internal/platform/metrics"
	"trend-reel/internal/render"
)

func weekSnapshot(t *testing.T, dates ...string) *history.Snapshot {
	t.Helper()
	snap := history.NewSnapshot()
	snap.Dates = dates
	rec := &history.Record{DailyRaw: map[string]int{}, Minutes: map[string][]int{}}
	for i, d := range dates {
		rec.DailyRaw[d] = []int{10, 20, 0, 30, 40, 50, 60}[i%7]
	}
	for _, d := range dates {
		tm, err := day.Parse(d)
		require.NoError(t, err)
		rec.Minutes[d] = curve.Reconstruct(rec.DailyRaw, tm)
	}
	snap.Articles["Example"] = rec
	return snap
}

func week() []string {
	dates, _ := day.Range("2024-01-07", 7)
	return dates
}

type fixture struct {
	dir      string
	renderer *segmentRenderer
	media    *fakeMedia
	asm      *Assembler
}

func newFixture(t *testing.T, tracks ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	music := filepath.Join(dir, "musics")
	require.NoError(t, os.MkdirAll(music, 0o755))
	for _, name := range tracks {
		require.NoError(t, os.WriteFile(filepath.Join(music, name), []byte("audio"), 0o644))
	}
	f := &fixture{
		dir:      dir,
		renderer: &segmentRenderer{fail: map[string]bool{}},
		media:    &fakeMedia{durations: map[string]float64{}},
	}
	f.asm = New(f.renderer, f.media, Options{
		VideoDir: filepath.Join(dir, "videos"),
		MusicDir: music,
		PageBase: "file:///docs/index.html",
		Page:     render.PageConfig{BaseThreshold: 100, ScalingFactors: map[string]float64{"en": 1}},
		Rand:     rand.New(rand.NewPCG(1, 2)),
	}, logger.Discard(), metrics.New())
	return f
}

func (f *fixture) cacheSegment(t *testing.T, date string) {
	t.Helper()
	p := f.asm.SegmentPath("en", date)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("cached-"+date+";"), 0o644))
}

// The joined master is not a real video here, so its duration cannot be read
// and the silent master is published as is; the short track never gets mixed.
func TestAssemble_end_to_end_unreadable_master_publishes_silent(t *testing.T) {
	f := newFixture(t, "short.mp3")
	f.media.durations["short.mp3"] = 10

	res, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, week()...))
	require.NoError(t, err)

	assert.Equal(t, week(), f.renderer.dates())
	require.Len(t, res.Segments, 7)
	for _, d := range week() {
		assert.FileExists(t, f.asm.SegmentPath("en", d))
		assert.Equal(t, OutcomeRendered, res.Days[d])
	}
	assert.Equal(t, res.Segments, f.media.joined)

	assert.True(t, res.Silent)
	assert.Empty(t, res.Track)
	master := filepath.Join(f.dir, "videos", "temp", "final_2024-01-07_en", "video_no_audio.mp4")
	assert.Equal(t, []string{master}, f.media.measured, "fallback caused by the master duration, before the track is measured")
	assert.Empty(t, f.media.mixes, "no mix attempted")
	b, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01;2024-01-02;2024-01-03;2024-01-04;2024-01-05;2024-01-06;2024-01-07;", string(b))
	assert.Equal(t, filepath.Join(f.dir, "videos", "2024-01-07_en.mp4"), res.Output)
	assert.NoDirExists(t, filepath.Join(f.dir, "videos", "temp", "final_2024-01-07_en"))
}

func TestAssemble_render_requests(t *testing.T) {
	f := newFixture(t)
	snap := weekSnapshot(t, week()...)

	_, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", snap)
	require.NoError(t, err)

	first, second := f.renderer.requests[0], f.renderer.requests[1]
	assert.Empty(t, first.PrevDate, "day before the window is not retained")
	assert.Equal(t, "2024-01-01", second.PrevDate)
	assert.Contains(t, second.URL, "prev_date=2024-01-01")
	assert.Equal(t, filepath.Join(f.dir, "videos", "temp", "2024-01-02_en"), second.TempDir)
	assert.JSONEq(t, `{"baseThreshold":100,"scalingFactors":{"en":1}}`, string(second.Config))

	var decoded history.Snapshot
	require.NoError(t, json.Unmarshal(first.Data, &decoded))
	assert.Equal(t, snap.Dates, decoded.Dates)
	assert.Len(t, decoded.Articles["Example"].Minutes["2024-01-04"], curve.MinutesPerDay)
}

func TestPlan_reuses_cached_outside_refresh_window(t *testing.T) {
	f := newFixture(t)
	for _, d := range week() {
		f.cacheSegment(t, d)
	}
	plans, err := f.asm.Plan("en", "2024-01-07", weekSnapshot(t, week()...))
	require.NoError(t, err)

	var forced []string
	for _, p := range plans {
		if p.Force {
			forced = append(forced, p.Date)
		}
	}
	assert.Equal(t, []string{"2024-01-05", "2024-01-06", "2024-01-07"}, forced)
}

func TestPlan_first_day_predecessor(t *testing.T) {
	f := newFixture(t)
	dates := append([]string{"2023-12-31"}, week()...)
	plans, err := f.asm.Plan("en", "2024-01-07", weekSnapshot(t, dates...))
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", plans[0].PrevDate)
}

func TestAssemble_skips_days_without_history(t *testing.T) {
	f := newFixture(t)
	// 2024-01-03 missing: it is skipped, and so is 2024-01-04 whose predecessor
	// it would have been.
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}

	res, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, dates...))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, res.Days["2024-01-03"])
	assert.Equal(t, OutcomeSkipped, res.Days["2024-01-04"])
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-05", "2024-01-06", "2024-01-07"}, f.renderer.dates())
	assert.Len(t, res.Segments, 5)
}

func TestAssemble_cached_day_with_missing_predecessor_is_reused(t *testing.T) {
	f := newFixture(t)
	f.cacheSegment(t, "2024-01-04")
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}

	res, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, dates...))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Days["2024-01-04"])
	assert.Len(t, res.Segments, 6)
}

func TestAssemble_failed_day_is_omitted(t *testing.T) {
	f := newFixture(t)
	f.renderer.fail["2024-01-06"] = true

	res, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, week()...))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Days["2024-01-06"])
	assert.Len(t, res.Segments, 6)
	assert.NotContains(t, res.Segments, f.asm.SegmentPath("en", "2024-01-06"))
}

func TestAssemble_failed_refresh_keeps_stale_segment(t *testing.T) {
	f := newFixture(t)
	f.cacheSegment(t, "2024-01-07")
	f.renderer.fail["2024-01-07"] = true

	res, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, week()...))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Days["2024-01-07"])
	assert.Contains(t, res.Segments, f.asm.SegmentPath("en", "2024-01-07"))
}

func TestAssemble_no_history(t *testing.T) {
	f := newFixture(t)
	_, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", history.NewSnapshot())
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestAssemble_no_segments(t *testing.T) {
	f := newFixture(t)
	for _, d := range week() {
		f.renderer.fail[d] = true
	}
	_, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, week()...))
	assert.ErrorIs(t, err, ErrNoSegments)
	assert.Empty(t, f.media.joined)
}

func TestAssemble_join_failure_keeps_temp(t *testing.T) {
	f := newFixture(t)
	f.media.concatErr = errors.New("concat failed")

	_, err := f.asm.Assemble(context.Background(), "en", "2024-01-07", weekSnapshot(t, week()...))
	require.Error(t, err)
	assert.DirExists(t, filepath.Join(f.dir, "videos", "temp", "final_2024-01-07_en"))
	assert.NoFileExists(t, f.asm.FinalPath("en", "2024-01-07"))
}
