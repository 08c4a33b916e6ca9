// Package history keeps the rolling per-group record of daily totals and the
// per-minute curves derived from them.
package history

import (
	"slices"
	"sort"
)

// DefaultWindow is the default number of retained dates per group.
const DefaultWindow = 30

// Record is the tracked history of one item (article). DailyRaw is sparse;
// Minutes holds one reconstructed curve per retained date.
type Record struct {
	DailyRaw map[string]int   `json:"daily_raw"`
	Minutes  map[string][]int `json:"minutes"`
}

// Snapshot is everything known about one stream-group. It is also the exact
// shape of the persisted file and of the payload injected into the renderer.
type Snapshot struct {
	Dates    []string           `json:"dates"`
	Articles map[string]*Record `json:"articles"`
}

// RankedItem is one entry of a day's ranking; Views is the authoritative
// total for that day.
type RankedItem struct {
	Title string `json:"title"`
	Views int    `json:"views"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Dates: []string{}, Articles: make(map[string]*Record)}
}

func newRecord() *Record {
	return &Record{DailyRaw: make(map[string]int), Minutes: make(map[string][]int)}
}

// HasDate reports whether d is in the retained-dates list.
func (s *Snapshot) HasDate(d string) bool {
	i := sort.SearchStrings(s.Dates, d)
	return i < len(s.Dates) && s.Dates[i] == d
}

// Clone returns a deep copy, safe to hand to a renderer while the original
// keeps changing.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Dates:    append([]string(nil), s.Dates...),
		Articles: make(map[string]*Record, len(s.Articles)),
	}
	for title, rec := range s.Articles {
		c := newRecord()
		for d, v := range rec.DailyRaw {
			c.DailyRaw[d] = v
		}
		for d, m := range rec.Minutes {
			c.Minutes[d] = append([]int(nil), m...)
		}
		out.Articles[title] = c
	}
	return out
}

// normalize fills nil maps left by a hand-edited or partial file and
// restores the sorted, duplicate-free order HasDate relies on.
func (s *Snapshot) normalize() {
	if s.Dates == nil {
		s.Dates = []string{}
	}
	slices.Sort(s.Dates)
	s.Dates = slices.Compact(s.Dates)
	if s.Articles == nil {
		s.Articles = make(map[string]*Record)
	}
	for title, rec := range s.Articles {
		if rec == nil {
			s.Articles[title] = newRecord()
			continue
		}
		if rec.DailyRaw == nil {
			rec.DailyRaw = make(map[string]int)
		}
		if rec.Minutes == nil {
			rec.Minutes = make(map[string][]int)
		}
	}
}

// registerDate inserts d, keeps the list sorted and evicts the oldest dates
// beyond window.
func (s *Snapshot) registerDate(d string, window int) {
	if !s.HasDate(d) {
		s.Dates = append(s.Dates, d)
		sort.Strings(s.Dates)
	}
	if len(s.Dates) > window {
		s.Dates = append([]string(nil), s.Dates[len(s.Dates)-window:]...)
	}
}

// pruneMinutes drops every curve whose date is no longer retained.
func (s *Snapshot) pruneMinutes() {
	for _, rec := range s.Articles {
		for d := range rec.Minutes {
			if !s.HasDate(d) {
				delete(rec.Minutes, d)
			}
		}
	}
}
