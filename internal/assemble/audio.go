package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoTracks is returned by Tracks when the library holds no usable file.
var ErrNoTracks = errors.New("assemble: no audio tracks")

// Tracks lists the audio files of dir with a supported extension, sorted by
// name.
func Tracks(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoTracks
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoTracks
	}
	return out, nil
}

// Offset returns where to start reading a track of audio seconds so that it
// covers video seconds: u scaled over the slack, or 0 when the track is not
// longer than the video. u is in [0, 1).
func Offset(video, audio, u float64) float64 {
	if audio <= video {
		return 0
	}
	return u * (audio - video)
}

// addAudio mixes a random track into silent and writes output. Any failure
// publishes silent unmodified instead; the returned track is then empty.
func (a *Assembler) addAudio(ctx context.Context, log *slog.Logger, silent, output string) (string, error) {
	track, err := a.mix(ctx, silent, output)
	if err == nil {
		log.Info("audio mixed", slog.String("track", filepath.Base(track)))
		return track, nil
	}

	log.Warn("publishing without audio", slog.String("error", err.Error()))
	_ = os.Remove(output)
	if err := os.Rename(silent, output); err != nil {
		return "", fmt.Errorf("publish silent video: %w", err)
	}
	return "", nil
}

func (a *Assembler) mix(ctx context.Context, silent, output string) (string, error) {
	tracks, err := Tracks(a.opts.MusicDir, a.opts.Extensions)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	track := tracks[a.rand.IntN(len(tracks))]
	u := a.rand.Float64()
	a.mu.Unlock()

	videoDur, err := a.media.Duration(ctx, silent)
	if err != nil {
		return "", fmt.Errorf("video duration: %w", err)
	}
	audioDur, err := a.media.Duration(ctx, track)
	if err != nil {
		return "", fmt.Errorf("duration of %s: %w", filepath.Base(track), err)
	}
	if videoDur <= 0 || audioDur <= 0 {
		return "", fmt.Errorf("unusable durations: video %.3fs, audio %.3fs", videoDur, audioDur)
	}

	offset := Offset(videoDur, audioDur, u)
	if err := a.media.MixAudio(ctx, silent, track, offset, videoDur, a.opts.AudioBitrate, output); err != nil {
		return "", err
	}
	return track, nil
}
