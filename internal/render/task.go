// Package render turns a history snapshot into a day segment: a headless
// browser plays the day minute by minute, each captured frame is streamed to
// an encoder, and the day's frame budget is split into chunks rendered in
// parallel and joined afterwards.
package render

import (
	"net/url"
)

// FrameRange is a half-open range [Start, End) of frame indices.
type FrameRange struct {
	Start int
	End   int
}

// Len returns the number of frames in r.
func (r FrameRange) Len() int {
	return r.End - r.Start
}

// Task is one chunk of a day render. It is never modified after planning; a
// retry resubmits the identical value.
type Task struct {
	Group   string
	Date    string
	Chunk   int
	Frames  FrameRange
	PreRoll int
	Output  string
	URL     string

	// Data and Config are the serialized snapshot and page configuration.
	// They are shared read-only between tasks.
	Data   []byte
	Config []byte
}

// PageConfig is the configuration payload injected next to the snapshot.
type PageConfig struct {
	BaseThreshold  float64            `json:"baseThreshold"`
	ScalingFactors map[string]float64 `json:"scalingFactors"`
}

// Viewport is the CSS size of the page and its device scale factor.
type Viewport struct {
	Width  int
	Height int
	Scale  float64
}

// Pixels returns the captured frame size in device pixels.
func (v Viewport) Pixels() (w, h int) {
	return int(float64(v.Width) * v.Scale), int(float64(v.Height) * v.Scale)
}

// PageURL returns the capture-mode address of the visualization page for a
// group and date. prevDate may be empty when no predecessor day is available.
func PageURL(base, group, date, prevDate string) string {
	q := url.Values{}
	q.Set("lang", group)
	q.Set("mode", "capture")
	q.Set("date", date)
	if prevDate != "" {
		q.Set("prev_date", prevDate)
	}
	return base + "?" + q.Encode()
}

// SplitFrames divides total frames into n contiguous equal chunks; the
// remainder goes to the last chunk.
func SplitFrames(total, n int) []FrameRange {
	if n <= 0 {
		n = 1
	}
	if n > total && total > 0 {
		n = total
	}
	size := total / n
	out := make([]FrameRange, n)
	for i := 0; i < n; i++ {
		end := (i + 1) * size
		if i == n-1 {
			end = total
		}
		out[i] = FrameRange{Start: i * size, End: end}
	}
	return out
}
