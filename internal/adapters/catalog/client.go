// Package catalog talks to the external music catalog: it imports a user's
// followed artists and looks up artist metadata with an app token.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/faceoff/pkg/metrics"
)

// MaxArtistIDs is the batch limit of the artists endpoint.
const MaxArtistIDs = 50

const (
	pageSize       = 50
	maxFollowPages = 1_000
	maxBodyBytes   = 4 << 20
	outcomeOK      = "ok"
	outcomeError   = "error"
)

// Image is one artist picture.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is the subset of catalog metadata the ranking UI shows.
type Artist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Genres       []string          `json:"genres"`
	Popularity   int               `json:"popularity"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
}

// Client calls the catalog REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClock overrides the time passed to the token source.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// NewClient creates a client rooted at baseURL, e.g. https://api.spotify.com/v1.
// tokens may be nil when only user-token calls are made.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type followingPage struct {
	Artists struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Next  *string `json:"next"`
		Total int     `json:"total"`
	} `json:"artists"`
}

// FollowedArtistIDs pages through everything the token's user follows.
// The user token is only forwarded, never stored.
func (c *Client) FollowedArtistIDs(ctx context.Context, userToken string) ([]string, error) {
	if userToken == "" {
		return nil, ErrMissingToken
	}
	next := fmt.Sprintf("%s/me/following?type=artist&limit=%d", c.baseURL, pageSize)
	ids := []string{}
	for page := 0; next != "" && page < maxFollowPages; page++ {
		var body followingPage
		if err := c.getJSON(ctx, "following", next, userToken, &body); err != nil {
			return nil, err
		}
		for _, it := range body.Artists.Items {
			if it.ID != "" {
				ids = append(ids, it.ID)
			}
		}
		next = ""
		if body.Artists.Next != nil {
			next = *body.Artists.Next
		}
	}
	return ids, nil
}

// Artists looks up 1..MaxArtistIDs artists with the app token. Ids the
// catalog does not know are left out of the result.
func (c *Client) Artists(ctx context.Context, ids []string) ([]Artist, error) {
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}
	if len(ids) > MaxArtistIDs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyIDs, len(ids), MaxArtistIDs)
	}
	if c.tokens == nil {
		return nil, fmt.Errorf("%w: no app credentials configured", ErrMissingToken)
	}
	token, err := c.tokens.GetOrRefresh(ctx, c.now())
	if err != nil {
		return nil, fmt.Errorf("app token: %w", err)
	}

	u := c.baseURL + "/artists?" + url.Values{"ids": {strings.Join(ids, ",")}}.Encode()
	var body struct {
		Artists []*Artist `json:"artists"`
	}
	if err := c.getJSON(ctx, "artists", u, token, &body); err != nil {
		return nil, err
	}
	out := make([]Artist, 0, len(body.Artists))
	for _, a := range body.Artists {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, u, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		record(endpoint, outcomeError, start)
		return fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		record(endpoint, outcomeError, start)
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		record(endpoint, outcomeError, start)
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, endpoint, err)
	}
	record(endpoint, outcomeOK, start)
	return nil
}

// checkStatus turns a non-2xx response into ErrUpstream carrying the body text.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
}

func record(endpoint, outcome string, start time.Time) {
	metrics.RecordCatalogRequest(endpoint, outcome, float64(time.Since(start).Microseconds())/1000.0)
}
