package insights

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_GetFollowerCountSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("metric") != "follower_count" || q.Get("period") != "day" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("access_token") != "tok" {
			t.Errorf("expected access token, got %q", q.Get("access_token"))
		}
		// since/until are epoch seconds, not milliseconds.
		if q.Get("since") != "1700000000" {
			t.Errorf("expected since in seconds, got %q", q.Get("since"))
		}
		fmt.Fprint(w, `{"data":[{"values":[
			{"end_time":"2025-06-14T07:00:00Z","value":1200},
			{"end_time":"2025-06-15T07:00:00Z","value":1234}
		]}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	points, err := c.GetFollowerCountSeries(context.Background(), SeriesParams{
		SinceMs: 1700000000000,
		UntilMs: 1700086400000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[1].Value != 1234 {
		t.Fatalf("unexpected points: %v", points)
	}
}

func TestClient_GetFollowerCountSeries_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad token"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.GetFollowerCountSeries(context.Background(), SeriesParams{}); err == nil {
		t.Fatal("expected error")
	}
}
