package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logx "dailyverse/pkg/logx"
)

const catalogJSON = `{"data":[
 {"id":"de4e12af7f28f599-02","abbreviation":"engKJV","name":"King James (Authorised) Version","language":{"id":"eng"}},
 {"id":"9879dbb7cfe39e4d-04","abbreviation":"WEB","name":"World English Bible","language":{"id":"eng"}},
 {"id":"592420522e16049f-01","abbreviation":"RVR09","name":"Reina Valera 1909","language":{"id":"spa"}}
]}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{Endpoint: srv.URL + "/", APIKey: "secret", Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return c, srv
}

func TestFetchPassage(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/bibles/de4e12af7f28f599-02/passages/PSA.23.1-PSA.23.6" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("content-type") != "text" {
			t.Errorf("content-type query missing")
		}
		_, _ = w.Write([]byte(`{"data":{"id":"PSA.23.1-PSA.23.6","reference":"Psalms 23:1-6","content":"     [1] The LORD is my shepherd;\n  I shall not want. ¶ [2] He maketh me...","copyright":"PUBLIC DOMAIN"}}`))
	})

	p, err := c.Fetch(context.Background(), "de4e12af7f28f599-02", "PSA.23.1-6")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Reference != "Psalms 23:1-6" {
		t.Fatalf("reference = %q", p.Reference)
	}
	if p.Text != "The LORD is my shepherd; I shall not want. He maketh me..." {
		t.Fatalf("text = %q", p.Text)
	}
}

func TestFetchClassifiesErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		want   Kind
	}{
		{"not found", http.StatusNotFound, nil, `{"error":"Not Found"}`, NotFound},
		{"bad passage", http.StatusBadRequest, nil, `{"error":"bad passage id"}`, NotFound},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, ``, RateLimited},
		{"server error", http.StatusBadGateway, nil, `oops`, Unavailable},
		{"unauthorised", http.StatusUnauthorized, nil, ``, Unavailable},
		{"empty data", http.StatusOK, nil, `{"data":null}`, NotFound},
		{"garbage", http.StatusOK, nil, `<html>`, Unavailable},
		{"empty text", http.StatusOK, nil, `{"data":{"reference":"John 3:16","content":"   "}}`, NotFound},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Fetch(context.Background(), "v", "JHN.3.16")
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ce.Kind != tc.want {
				t.Fatalf("kind = %s, want %s (%v)", ce.Kind, tc.want, err)
			}
			if tc.want == RateLimited && ce.RetryAfter != 30*time.Second {
				t.Fatalf("retry after = %v", ce.RetryAfter)
			}
		})
	}
}

func TestFetchTimeoutIsUnavailable(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, "v", "JHN.3.16")
	if KindOf(err) != Unavailable {
		t.Fatalf("kind = %s (%v)", KindOf(err), err)
	}
}

func TestVersionsCachedWithTTL(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	var fail atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(catalogJSON))
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		vs, err := c.Versions(context.Background())
		if err != nil || len(vs) != 3 {
			t.Fatalf("Versions: n=%d err=%v", len(vs), err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}

	now = now.Add(7 * time.Hour)
	fail.Store(true)
	vs, err := c.Versions(context.Background())
	if err != nil || len(vs) != 3 {
		t.Fatalf("stale catalog should be served: n=%d err=%v", len(vs), err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected a refresh attempt, got %d", hits.Load())
	}
}

func TestVersionsUnavailableWithoutCache(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.Versions(context.Background()); KindOf(err) != Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(ClientConfig{Endpoint: "http://x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := NewClient(ClientConfig{APIKey: "k"}, logx.Nop()); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}
