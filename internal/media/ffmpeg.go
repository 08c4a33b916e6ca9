// Package media drives the ffmpeg and ffprobe binaries: streaming encode of
// captured frames, lossless concatenation, duration probing and audio muxing.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrEmptyOutput is returned when ffmpeg exits cleanly but leaves no usable file.
var ErrEmptyOutput = errors.New("media: encoder produced no output")

// FFmpeg runs ffmpeg/ffprobe subprocesses.
type FFmpeg struct {
	bin     string
	ffprobe string
	log     *slog.Logger
}

// New returns an FFmpeg using the given binaries ("ffmpeg"/"ffprobe" if empty).
func New(ffmpegPath, ffprobePath string, log *slog.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{bin: ffmpegPath, ffprobe: ffprobePath, log: log}
}

// Encoder is a running ffmpeg process consuming a JPEG stream on stdin.
// Write frames in order, then Close to signal end of stream and wait for exit.
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	output string

	once     sync.Once
	closeErr error
}

// StartEncoder launches ffmpeg writing to output. The parent directory is
// created if needed.
func (f *FFmpeg) StartEncoder(ctx context.Context, output string, spec StreamSpec) (*Encoder, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("create encoder output dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, f.bin, EncodeArgs(spec, output)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	stderr := &tailBuffer{max: 8 << 10}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	return &Encoder{cmd: cmd, stdin: stdin, stderr: stderr, output: output}, nil
}

// WriteFrame writes one compressed still image.
func (e *Encoder) WriteFrame(frame []byte) error {
	if _, err := e.stdin.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes stdin and waits for ffmpeg. It succeeds only on a clean exit
// with a non-empty output file. Close is safe to call more than once.
func (e *Encoder) Close() error {
	e.once.Do(func() {
		_ = e.stdin.Close()
		if err := e.cmd.Wait(); err != nil {
			e.closeErr = fmt.Errorf("encoder exit: %w: %s", err, e.stderr.String())
			return
		}
		e.closeErr = nonEmpty(e.output)
	})
	return e.closeErr
}

// Concat losslessly joins inputs, in order, into output. The list file is
// written next to output and removed afterwards.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return errors.New("concat: no inputs")
	}
	list, err := ConcatList(inputs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create concat output dir: %w", err)
	}
	listFile := output + ".concat.txt"
	if err := os.WriteFile(listFile, []byte(list), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	if err := f.run(ctx, f.bin, ConcatArgs(listFile, output)); err != nil {
		return fmt.Errorf("concat %d files: %w", len(inputs), err)
	}
	return nonEmpty(output)
}

// Duration reads the container duration of path in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffprobe, DurationArgs(path)...)
	cmd.Stdout = &stdout
	stderr := &tailBuffer{max: 4 << 10}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("duration of %s: %w: %s", filepath.Base(path), err, stderr.String())
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("duration of %s: parse: %w", filepath.Base(path), err)
	}
	return d, nil
}

// MixAudio writes output: the video stream of video copied as is, plus audio
// trimmed from offset to cover duration seconds.
func (f *FFmpeg) MixAudio(ctx context.Context, video, audio string, offset, duration float64, bitrate, output string) error {
	if err := f.run(ctx, f.bin, MixArgs(video, audio, offset, duration, bitrate, output)); err != nil {
		return fmt.Errorf("mix audio: %w", err)
	}
	return nonEmpty(output)
}

func (f *FFmpeg) run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	stderr := &tailBuffer{max: 8 << 10}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	f.log.Debug("exec", slog.String("bin", bin), slog.String("args", strings.Join(args, " ")))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

func nonEmpty(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyOutput, path)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
