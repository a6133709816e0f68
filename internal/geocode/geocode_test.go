package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPlaceCompose(t *testing.T) {
	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{
			name: "All parts",
			place: Place{Address: Address{
				Neighbourhood: "Soho", City: "London", State: "England", Country: "United Kingdom",
			}},
			want: "Soho, London, England, United Kingdom",
		},
		{
			name: "Town and suburb substitutes",
			place: Place{Address: Address{
				Suburb: "Old Town", Town: "Bruges", Region: "Flanders", Country: "Belgium",
			}},
			want: "Old Town, Bruges, Flanders, Belgium",
		},
		{
			name:  "Missing parts are skipped",
			place: Place{Address: Address{City: "Paris", Country: "France"}},
			want:  "Paris, France",
		},
		{
			name:  "Display name fallback",
			place: Place{DisplayName: "Middle of the Atlantic"},
			want:  "Middle of the Atlantic",
		},
		{
			name:  "Nothing",
			place: Place{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.place.Compose(); got != tt.want {
				t.Errorf("Compose() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientPlaceName(t *testing.T) {
	var gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"display_name":"Soho, Westminster, London","address":{"neighbourhood":"Soho","city":"London","state":"England","country":"United Kingdom"}}`)
	}))
	defer server.Close()

	c := New(Options{URL: server.URL, UserAgent: "ingest-test"})
	name, err := c.PlaceName(context.Background(), 51.5136, -0.1365)
	if err != nil {
		t.Fatalf("PlaceName() error = %v", err)
	}
	if name != "Soho, London, England, United Kingdom" {
		t.Errorf("PlaceName() = %q", name)
	}
	if gotAgent != "ingest-test" {
		t.Errorf("User-Agent = %q, want ingest-test", gotAgent)
	}
	if gotQuery == "" {
		t.Error("expected query parameters")
	}
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":"Unable to geocode"}`)
	}))
	defer server.Close()

	_, err := New(Options{URL: server.URL}).PlaceName(context.Background(), 0, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("PlaceName() error = %v, want ErrNotFound", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"busy"}}`)
			return
		}
		fmt.Fprint(w, `{"display_name":"Somewhere","address":{"country":"Norway"}}`)
	}))
	defer server.Close()

	name, err := New(Options{URL: server.URL, Retries: 3}).PlaceName(context.Background(), 60, 10)
	if err != nil {
		t.Fatalf("PlaceName() error = %v", err)
	}
	if name != "Norway" {
		t.Errorf("PlaceName() = %q, want Norway", name)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"Access blocked"}}`)
	}))
	defer server.Close()

	_, err := New(Options{URL: server.URL, Retries: 3}).PlaceName(context.Background(), 1, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("PlaceName() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "Access blocked" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

type countingResolver struct {
	calls int
	name  string
	err   error
}

func (r *countingResolver) PlaceName(_ context.Context, _, _ float64) (string, error) {
	r.calls++
	return r.name, r.err
}

func TestCached(t *testing.T) {
	next := &countingResolver{name: "Oslo, Norway"}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := c.PlaceName(ctx, 59.91273, 10.74609)
		if err != nil || name != "Oslo, Norway" {
			t.Fatalf("PlaceName() = %q, %v", name, err)
		}
	}
	// Within the rounding cell.
	if _, err := c.PlaceName(ctx, 59.91271, 10.74611); err != nil {
		t.Fatalf("PlaceName() error = %v", err)
	}
	if next.calls != 1 {
		t.Errorf("underlying resolver called %d times, want 1", next.calls)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	next := &countingResolver{err: errors.New("down")}
	c := NewCached(next, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.PlaceName(context.Background(), 1, 2); err == nil {
			t.Fatal("PlaceName() expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("underlying resolver called %d times, want 2", next.calls)
	}
}
