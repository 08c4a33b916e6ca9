// Package pageviews is a thin client for the Wikimedia pageviews REST API:
// per-article daily totals, the daily top list and site-wide aggregates.
package pageviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trend-reel/internal/day"
	"trend-reel/internal/history"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://wikimedia.org/api/rest_v1/metrics/pageviews"

// ErrNotFound is returned when the API has no data for the request, e.g. a
// top list that is not published yet.
var ErrNotFound = errors.New("pageviews: not found")

// Client queries the pageviews API. It performs no retries.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
}

// NewClient returns a Client for base (DefaultBaseURL if empty).
func NewClient(base, userAgent string, hc *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), userAgent: userAgent, http: hc}
}

type dailyResponse struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Views     int    `json:"views"`
	} `json:"items"`
}

// DailyCounts returns the user-agent daily totals of title between from and to
// (ISO dates, inclusive), keyed by ISO date.
func (c *Client) DailyCounts(ctx context.Context, project, title, from, to string) (map[string]int, error) {
	start, err := compact(from)
	if err != nil {
		return nil, err
	}
	end, err := compact(to)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/per-article/%s/all-access/user/%s/daily/%s/%s",
		c.base, project, url.PathEscape(title), start, end)

	var resp dailyResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(resp.Items))
	for _, it := range resp.Items {
		if len(it.Timestamp) < 8 {
			continue
		}
		t, err := time.Parse("20060102", it.Timestamp[:8])
		if err != nil {
			continue
		}
		out[day.Format(t)] = it.Views
	}
	return out, nil
}

type topResponse struct {
	Items []struct {
		Articles []struct {
			Article string `json:"article"`
			Views   int    `json:"views"`
		} `json:"articles"`
	} `json:"items"`
}

// TopArticles returns up to n ranked articles of the edition code on date,
// excluding non-content pages. A missing list yields an empty result.
func (c *Client) TopArticles(ctx context.Context, code, date string, n int) ([]history.RankedItem, error) {
	t, err := day.Parse(date)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/top/%s.wikipedia/all-access/%s", c.base, code, t.Format("2006/01/02"))

	var resp topResponse
	if err := c.get(ctx, u, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	var out []history.RankedItem
	for _, a := range resp.Items[0].Articles {
		if Ignored(a.Article) {
			continue
		}
		out = append(out, history.RankedItem{Title: a.Article, Views: a.Views})
		if len(out) >= n {
			break
		}
	}
	return out, nil
}

type aggregateResponse struct {
	Items []struct {
		Views *int `json:"views"`
	} `json:"items"`
}

// ScalingFactors returns, per project, sqrt(avg / max avg) of the site-wide
// daily views over the 20 days before now. Projects whose aggregate could not
// be fetched are absent; ok is false when nothing could be fetched.
func (c *Client) ScalingFactors(ctx context.Context, projects map[string]string, now time.Time) (factors map[string]float64, ok bool) {
	end := now.UTC()
	start := end.AddDate(0, 0, -20)

	avg := make(map[string]float64)
	for code, project := range projects {
		key := strings.TrimSuffix(project, ".org")
		u := fmt.Sprintf("%s/aggregate/%s/all-access/user/daily/%s/%s",
			c.base, key, start.Format("20060102"), end.Format("20060102"))
		var resp aggregateResponse
		if err := c.get(ctx, u, &resp); err != nil {
			continue
		}
		var sum float64
		var n int
		for _, it := range resp.Items {
			if it.Views != nil {
				sum += float64(*it.Views)
				n++
			}
		}
		if n > 0 {
			avg[code] = sum / float64(n)
		}
	}
	if len(avg) == 0 {
		return nil, false
	}

	var maxAvg float64
	for _, v := range avg {
		maxAvg = math.Max(maxAvg, v)
	}
	factors = make(map[string]float64, len(projects))
	for code := range projects {
		factors[code] = 1.0
	}
	if maxAvg == 0 {
		return factors, true
	}
	for code, v := range avg {
		factors[code] = math.Sqrt(v / maxAvg)
	}
	return factors, true
}

func (c *Client) get(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pageviews request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("pageviews request %s: status %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode pageviews response: %w", err)
	}
	return nil
}

func compact(iso string) (string, error) {
	t, err := day.Parse(iso)
	if err != nil {
		return "", err
	}
	return t.Format("20060102"), nil
}
