package media

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// StreamSpec describes the still-image stream fed to an encoder and the size
// of the encoded output.
type StreamSpec struct {
	FPS    int
	Width  int
	Height int
}

// EncodeArgs builds the ffmpeg arguments that read a JPEG stream from stdin
// and write an H.264 file at output.
func EncodeArgs(spec StreamSpec, output string) []string {
	fps := strconv.Itoa(spec.FPS)
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-r", fps, "-i", "-",
		"-c:v", "libx264", "-preset", "fast", "-crf", "18",
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d:flags=lanczos", fps, spec.Width, spec.Height),
		"-pix_fmt", "yuv420p",
		output,
	}
}

// ConcatArgs builds the arguments of a lossless concat of the files listed
// in listFile.
func ConcatArgs(listFile, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listFile,
		"-c", "copy",
		output,
	}
}

// MixArgs builds the arguments that copy the video stream of video, add audio
// starting offset seconds into the track, and cut the result at duration.
func MixArgs(video, audio string, offset, duration float64, bitrate, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-ss", seconds(offset), "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac", "-b:a", bitrate,
		"-t", seconds(duration),
		output,
	}
}

// DurationArgs builds the ffprobe arguments that print the container duration.
func DurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// ConcatList renders an ffmpeg concat demuxer list for paths, in order.
// Paths are made absolute and single quotes escaped.
func ConcatList(paths []string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("concat list: %w", err)
		}
		abs = filepath.ToSlash(abs)
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
