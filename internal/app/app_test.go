package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-reel/internal/pipeline"
	"trend-reel/internal/platform/config"
	"trend-reel/internal/platform/logger"
	"trend-reel/internal/platform/metrics"
	"trend-reel/internal/render"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("REEL_BASE_DIR", t.TempDir())
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestNew_wires_components(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, logger.Discard(), metrics.New())
	require.NoError(t, err)

	assert.NotNil(t, a.Runner)
	assert.NotNil(t, a.Assembler)
	assert.Equal(t,
		filepath.Join(cfg.VideoDir, "2024-01-07", "en", "segment_2024-01-07.mp4"),
		a.Assembler.SegmentPath("en", "2024-01-07"))

	plan := a.Renderer.Plan(render.DayRequest{Group: "en", Date: "2024-01-07", PrevDate: "2024-01-06"})
	require.Len(t, plan, 2)
	assert.Equal(t, render.FrameRange{Start: 720, End: 1440}, plan[1].Frames)
}

func TestInitialPageConfig(t *testing.T) {
	cfg := testConfig(t)
	pc := initialPageConfig(cfg)
	assert.Equal(t, 100.0, pc.BaseThreshold)
	assert.Len(t, pc.ScalingFactors, len(cfg.Groups))

	cached := render.PageConfig{BaseThreshold: 80, ScalingFactors: map[string]float64{"en": 0.7}}
	require.NoError(t, pipeline.WritePageConfig(filepath.Join(cfg.DataDir, pipeline.ConfigFile), cached))
	assert.Equal(t, cached, initialPageConfig(cfg))
}

func TestFileURL(t *testing.T) {
	u, err := fileURL("/srv/reel/docs/index.html")
	require.NoError(t, err)
	assert.Equal(t, "file:///srv/reel/docs/index.html", u)
}
