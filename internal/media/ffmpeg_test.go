package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-reel/internal/platform/logger"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func lines(args []string) []byte {
	return []byte(strings.Join(args, "\n") + "\n")
}

func TestEncodeArgs_golden(t *testing.T) {
	args := EncodeArgs(StreamSpec{FPS: 60, Width: 2560, Height: 1440}, "/videos/temp/2024-01-07_en/chunk_0.mp4")
	newGoldie(t).Assert(t, "encode_args", lines(args))
}

func TestMixArgs_golden(t *testing.T) {
	args := MixArgs("/tmp/v.mp4", "/musics/a.mp3", 3.25, 168, "192k", "/videos/2024-01-07_en.mp4")
	newGoldie(t).Assert(t, "mix_args", lines(args))
}

func TestConcatList_golden(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("absolute unix paths")
	}
	list, err := ConcatList([]string{
		"/videos/2024-01-01/en/segment_2024-01-01.mp4",
		"/videos/it's/seg.mp4",
	})
	require.NoError(t, err)
	newGoldie(t).Assert(t, "concat_list", []byte(list))
}

func TestTailBuffer_keeps_tail(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abcdef"))
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "efgh", b.String())
}

// fakeBin writes an executable shell script standing in for ffmpeg/ffprobe.
func fakeBin(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// catToLast copies stdin to the last argument, like an encoder that stores
// its input verbatim.
const catToLast = `for last; do :; done
cat > "$last"`

func TestEncoder_streams_frames_in_order(t *testing.T) {
	f := New(fakeBin(t, "ffmpeg", catToLast), "", logger.Discard())
	out := filepath.Join(t.TempDir(), "chunk", "chunk_0.mp4")

	enc, err := f.StartEncoder(context.Background(), out, StreamSpec{FPS: 60, Width: 64, Height: 36})
	require.NoError(t, err)
	for _, frame := range []string{"f0|", "f1|", "f2|"} {
		require.NoError(t, enc.WriteFrame([]byte(frame)))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close(), "Close is idempotent")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "f0|f1|f2|", string(b))
}

func TestEncoder_nonzero_exit(t *testing.T) {
	f := New(fakeBin(t, "ffmpeg", "cat > /dev/null\necho boom >&2\nexit 3"), "", logger.Discard())
	enc, err := f.StartEncoder(context.Background(), filepath.Join(t.TempDir(), "c.mp4"), StreamSpec{FPS: 60, Width: 64, Height: 36})
	require.NoError(t, err)
	_ = enc.WriteFrame([]byte("x"))

	err = enc.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEncoder_empty_output(t *testing.T) {
	f := New(fakeBin(t, "ffmpeg", catToLast), "", logger.Discard())
	enc, err := f.StartEncoder(context.Background(), filepath.Join(t.TempDir(), "c.mp4"), StreamSpec{FPS: 60, Width: 64, Height: 36})
	require.NoError(t, err)

	err = enc.Close()
	assert.True(t, errors.Is(err, ErrEmptyOutput), "got %v", err)
}

func TestDuration(t *testing.T) {
	f := New("", fakeBin(t, "ffprobe", "echo 12.5"), logger.Discard())
	d, err := f.Duration(context.Background(), "/any.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, d, 1e-9)
}

func TestDuration_unparsable(t *testing.T) {
	f := New("", fakeBin(t, "ffprobe", "echo N/A"), logger.Discard())
	_, err := f.Duration(context.Background(), "/any.mp4")
	assert.Error(t, err)
}

func TestConcat_writes_list_and_cleans_up(t *testing.T) {
	// The fake copies the list file it was given into the output.
	script := `while [ "$1" != "-i" ]; do shift; done
list="$2"
for last; do :; done
cp "$list" "$last"`
	f := New(fakeBin(t, "ffmpeg", script), "", logger.Discard())
	dir := t.TempDir()
	out := filepath.Join(dir, "segment.mp4")

	err := f.Concat(context.Background(), []string{filepath.Join(dir, "chunk_0.mp4"), filepath.Join(dir, "chunk_1.mp4")}, out)
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "file '"))
	assert.Less(t, strings.Index(string(b), "chunk_0"), strings.Index(string(b), "chunk_1"))
	_, err = os.Stat(out + ".concat.txt")
	assert.True(t, os.IsNotExist(err), "list file removed")
}

func TestConcat_no_inputs(t *testing.T) {
	f := New("", "", logger.Discard())
	assert.Error(t, f.Concat(context.Background(), nil, filepath.Join(t.TempDir(), "x.mp4")))
}
