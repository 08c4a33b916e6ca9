package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracks_filters_extensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.FLAC", "notes.txt", "c.ogg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.mp3"), 0o755))

	got, err := Tracks(dir, []string{".mp3", ".flac", ".ogg"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.mp3"),
		filepath.Join(dir, "b.FLAC"),
		filepath.Join(dir, "c.ogg"),
	}, got)
}

func TestTracks_empty_library(t *testing.T) {
	_, err := Tracks(t.TempDir(), []string{".mp3"})
	assert.ErrorIs(t, err, ErrNoTracks)

	_, err = Tracks(filepath.Join(t.TempDir(), "missing"), []string{".mp3"})
	assert.ErrorIs(t, err, ErrNoTracks)
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0.0, Offset(168, 10, 0.9), "short track starts at 0")
	assert.Equal(t, 0.0, Offset(168, 168, 0.5))
	assert.InDelta(t, 16.0, Offset(168, 200, 0.5), 1e-9)
	assert.Less(t, Offset(168, 200, 0.999999), 32.0)
}

func silentMaster(t *testing.T, f *fixture) string {
	t.Helper()
	p := filepath.Join(f.dir, "video_no_audio.mp4")
	require.NoError(t, os.WriteFile(p, []byte("master"), 0o644))
	return p
}

func TestAddAudio_mixes_random_track(t *testing.T) {
	f := newFixture(t, "long.mp3")
	f.media.durations["video_no_audio.mp4"] = 168
	f.media.durations["long.mp3"] = 300
	silent := silentMaster(t, f)
	out := filepath.Join(f.dir, "final.mp4")

	track, err := f.asm.addAudio(context.Background(), f.asm.log, silent, out)
	require.NoError(t, err)
	assert.Equal(t, "long.mp3", filepath.Base(track))

	require.Len(t, f.media.mixes, 1)
	mix := f.media.mixes[0]
	assert.Equal(t, 168.0, mix.duration)
	assert.Equal(t, "192k", mix.bitrate)
	assert.GreaterOrEqual(t, mix.offset, 0.0)
	assert.LessOrEqual(t, mix.offset, 132.0)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "master+long.mp3", string(b))
}

func TestAddAudio_short_track_starts_at_zero(t *testing.T) {
	f := newFixture(t, "short.wav")
	f.media.durations["video_no_audio.mp4"] = 168
	f.media.durations["short.wav"] = 10

	_, err := f.asm.addAudio(context.Background(), f.asm.log, silentMaster(t, f), filepath.Join(f.dir, "final.mp4"))
	require.NoError(t, err)
	require.Len(t, f.media.mixes, 1)
	assert.Equal(t, 0.0, f.media.mixes[0].offset)
}

func TestAddAudio_falls_back_to_silent(t *testing.T) {
	cases := []struct {
		name   string
		tracks []string
		setup  func(m *fakeMedia)
	}{
		{name: "no tracks"},
		{
			name:   "duration failure",
			tracks: []string{"broken.m4a"},
			setup:  func(m *fakeMedia) { m.durations["video_no_audio.mp4"] = 168 },
		},
		{
			name:   "mix failure",
			tracks: []string{"ok.mp3"},
			setup: func(m *fakeMedia) {
				m.durations["video_no_audio.mp4"] = 168
				m.durations["ok.mp3"] = 200
				m.mixErr = errors.New("aac encoder missing")
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.tracks...)
			if tc.setup != nil {
				tc.setup(f.media)
			}
			silent := silentMaster(t, f)
			out := filepath.Join(f.dir, "final.mp4")

			track, err := f.asm.addAudio(context.Background(), f.asm.log, silent, out)
			require.NoError(t, err)
			assert.Empty(t, track)

			b, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "master", string(b), "silent master published unmodified")
			assert.NoFileExists(t, silent)
		})
	}
}
