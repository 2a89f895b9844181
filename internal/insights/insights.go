// Package insights wraps the social-insights API that backs the follower
// metric. The API only serves the current and immediately previous
// calendar month; callers degrade the metric to null outside that window.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FollowerPoint is one sample of the follower-count series.
type FollowerPoint struct {
	EndTimeISO string `json:"end_time"`
	Value      int64  `json:"value"`
}

// SeriesParams bounds a follower-series request.
type SeriesParams struct {
	SinceMs int64
	UntilMs int64
}

// InsightsSource is the optional collaborator providing follower counts.
type InsightsSource interface {
	GetFollowerCountSeries(ctx context.Context, p SeriesParams) ([]FollowerPoint, error)
}

// Client fetches follower insights over HTTP.
type Client struct {
	httpc       *http.Client
	baseURL     string
	accessToken string
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		httpc:       &http.Client{Timeout: 15 * time.Second},
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

type seriesResponse struct {
	Data []struct {
		Values []FollowerPoint `json:"values"`
	} `json:"data"`
}

func (c *Client) GetFollowerCountSeries(ctx context.Context, p SeriesParams) ([]FollowerPoint, error) {
	q := url.Values{}
	q.Set("metric", "follower_count")
	q.Set("period", "day")
	q.Set("since", strconv.FormatInt(p.SinceMs/1000, 10))
	q.Set("until", strconv.FormatInt(p.UntilMs/1000, 10))
	q.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/insights?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch follower series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("insights API status %d: %s", resp.StatusCode, string(b))
	}

	var sr seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode follower series: %w", err)
	}

	var points []FollowerPoint
	for _, d := range sr.Data {
		points = append(points, d.Values...)
	}
	return points, nil
}
