// Package day handles the ISO calendar dates used as keys throughout the
// snapshot file and the video directory layout.
package day

import (
	"fmt"
	"time"
)

// Layout is the on-disk date format (YYYY-MM-DD).
const Layout = "2006-01-02"

// Parse parses an ISO date in UTC.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Format renders t as an ISO date.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Add shifts an ISO date by n days. s must be valid.
func Add(s string, n int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, n)), nil
}

// MustAdd is Add for dates already validated by the caller.
func MustAdd(s string, n int) string {
	out, err := Add(s, n)
	if err != nil {
		panic(err)
	}
	return out
}

// Range returns the n consecutive dates ending at end (inclusive), oldest first.
func Range(end string, n int) ([]string, error) {
	t, err := Parse(end)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = Format(t.AddDate(0, 0, i-(n-1)))
	}
	return out, nil
}

// Valid reports whether s is a well-formed ISO date.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
