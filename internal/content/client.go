package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "dailyverse/pkg/logx"
)

// ClientConfig configures the API.Bible client.
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	CatalogTTL time.Duration
}

// Client talks to API.Bible (https://scripture.api.bible).
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time

	mu        sync.Mutex
	catalog   []Version
	fetchedAt time.Time
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api.bible key is empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil || strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("invalid api.bible endpoint %q", cfg.Endpoint)
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 6 * time.Hour
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
		log:     log,
		now:     time.Now,
	}, nil
}

type apiVersion struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
	AbbrevLocal  string `json:"abbreviationLocal"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Language     struct {
		ID string `json:"id"`
	} `json:"language"`
}

type apiPassage struct {
	ID        string `json:"id"`
	BibleID   string `json:"bibleId"`
	Reference string `json:"reference"`
	Content   string `json:"content"`
	Copyright string `json:"copyright"`
}

// get performs one rate-limited GET and decodes the "data" envelope into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: Unavailable, Err: err}
	}
	u := c.cfg.Endpoint + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Kind: Unavailable, Err: err}
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: Unavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classifyStatus(resp, strings.TrimSpace(string(body)))
	}

	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil {
		return &Error{Kind: Unavailable, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &Error{Kind: NotFound, Status: resp.StatusCode, Err: errors.New("empty data")}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: Unavailable, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func classifyStatus(resp *http.Response, body string) *Error {
	e := &Error{Status: resp.StatusCode, Err: fmt.Errorf("%s: %s", resp.Status, truncate(body, 200))}
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		// API.Bible answers 400 for a passage id the version does not contain.
		e.Kind = NotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = RateLimited
		if s, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && s > 0 {
			e.RetryAfter = time.Duration(s) * time.Second
		}
	default:
		e.Kind = Unavailable
	}
	return e
}

var (
	verseMarker = regexp.MustCompile(`\[\d+\]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// cleanText flattens the plain-text rendering into a single paragraph.
func cleanText(s string) string {
	s = verseMarker.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "¶", " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// Fetch resolves reference (a curated verse id) in versionID.
func (c *Client) Fetch(ctx context.Context, versionID, reference string) (Passage, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return Passage{}, &Error{Kind: NotFound, Err: errors.New("empty version")}
	}
	pid, err := PassageID(reference)
	if err != nil {
		return Passage{}, &Error{Kind: NotFound, Err: err}
	}

	q := url.Values{}
	q.Set("content-type", "text")
	q.Set("include-notes", "false")
	q.Set("include-titles", "false")
	q.Set("include-chapter-numbers", "false")
	q.Set("include-verse-numbers", "false")

	var p apiPassage
	path := "/v1/bibles/" + url.PathEscape(versionID) + "/passages/" + url.PathEscape(pid)
	if err := c.get(ctx, path, q, &p); err != nil {
		return Passage{}, err
	}
	text := cleanText(p.Content)
	if text == "" {
		return Passage{}, &Error{Kind: NotFound, Err: fmt.Errorf("passage %s has no text in %s", pid, versionID)}
	}
	return Passage{
		Reference: strings.TrimSpace(p.Reference),
		Text:      text,
		VersionID: versionID,
		Copyright: strings.TrimSpace(p.Copyright),
	}, nil
}

// Versions returns the full catalog, cached for CatalogTTL. A stale cache is
// served when a refresh fails.
func (c *Client) Versions(ctx context.Context) ([]Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && c.now().Sub(c.fetchedAt) < c.cfg.CatalogTTL {
		return c.catalog, nil
	}

	var raw []apiVersion
	if err := c.get(ctx, "/v1/bibles", nil, &raw); err != nil {
		if c.catalog != nil {
			c.log.Warn("catalog refresh failed; serving stale copy", logx.Err(err), logx.Time("fetched_at", c.fetchedAt))
			return c.catalog, nil
		}
		return nil, err
	}

	out := make([]Version, 0, len(raw))
	for _, v := range raw {
		abbr := v.Abbreviation
		if abbr == "" {
			abbr = v.AbbrevLocal
		}
		out = append(out, Version{
			ID:           v.ID,
			Abbreviation: abbr,
			Name:         strings.TrimSpace(v.Name),
			Language:     v.Language.ID,
			Description:  strings.TrimSpace(v.Description),
		})
	}
	c.catalog = out
	c.fetchedAt = c.now()
	c.log.Debug("catalog refreshed", logx.Int("versions", len(out)))
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
