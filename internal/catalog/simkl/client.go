package simkl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"couchlog/internal/catalog"
	"couchlog/internal/titles"
)

// Client provides access to the Simkl API.
type Client struct {
	clientID    string
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

var _ catalog.Resolver = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAccessToken sets the user credential after construction (the auth flow
// produces tokens while the rest of the client is already wired).
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = strings.TrimSpace(token)
	}
}

// New creates a Simkl client. The access token may be empty; resolution
// works with just a client id, mark-watched requires the token.
func New(clientID, baseURL string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("simkl client id required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("simkl base url required")
	}
	client := &Client{
		clientID:   clientID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// searchResult models one entry of a Simkl search response.
type searchResult struct {
	IDs struct {
		Simkl int64 `json:"simkl"`
	} `json:"ids"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	Runtime       int    `json:"runtime"`
	TotalEpisodes int    `json:"total_episodes"`
}

// Resolve searches Simkl for the candidate and returns the canonical item.
// On multiple matches the first (highest-relevance) result wins.
func (c *Client) Resolve(ctx context.Context, cand titles.Candidate) (*catalog.ResolvedItem, error) {
	if cand.IsZero() {
		return nil, catalog.ErrNotFound
	}

	endpoint := "/search/movie"
	mediaType := titles.MediaMovie
	if cand.Type == titles.MediaEpisode {
		endpoint = "/search/tv"
		mediaType = titles.MediaEpisode
	}

	params := url.Values{}
	params.Set("q", cand.Name)
	params.Set("extended", "full")
	params.Set("client_id", c.clientID)
	if cand.Year > 0 {
		params.Set("year", strconv.Itoa(cand.Year))
	}

	var results []searchResult
	if err := c.getJSON(ctx, endpoint, params, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, catalog.ErrNotFound
	}

	best := results[0]
	if best.IDs.Simkl == 0 {
		return nil, catalog.ErrNotFound
	}

	item := &catalog.ResolvedItem{
		CatalogID:      best.IDs.Simkl,
		Title:          best.Title,
		MediaType:      mediaType,
		Year:           best.Year,
		RuntimeMinutes: best.Runtime,
		TotalEpisodes:  best.TotalEpisodes,
	}

	// Movie search results frequently omit runtime; the details endpoint has it.
	if mediaType == titles.MediaMovie && item.RuntimeMinutes == 0 {
		if details, err := c.movieDetails(ctx, item.CatalogID); err == nil && details.Runtime > 0 {
			item.RuntimeMinutes = details.Runtime
		}
	}

	return item, nil
}

func (c *Client) movieDetails(ctx context.Context, id int64) (*searchResult, error) {
	params := url.Values{}
	params.Set("extended", "full")
	params.Set("client_id", c.clientID)
	var details searchResult
	if err := c.getJSON(ctx, fmt.Sprintf("/movies/%d", id), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

type historyIDs struct {
	Simkl int64 `json:"simkl"`
}

type historyEpisode struct {
	Number int `json:"number"`
}

type historySeason struct {
	Number   int              `json:"number"`
	Episodes []historyEpisode `json:"episodes"`
}

type historyMovie struct {
	IDs       historyIDs `json:"ids"`
	WatchedAt string     `json:"watched_at,omitempty"`
}

type historyShow struct {
	IDs     historyIDs      `json:"ids"`
	Seasons []historySeason `json:"seasons,omitempty"`
}

type historyPayload struct {
	Movies []historyMovie `json:"movies,omitempty"`
	Shows  []historyShow  `json:"shows,omitempty"`
}

// MarkWatched posts the item to Simkl's watch history. Failures come back as
// *catalog.MarkError classified for backlog routing.
func (c *Client) MarkWatched(ctx context.Context, item *catalog.ResolvedItem, episode *catalog.EpisodeRef) error {
	if item == nil || item.CatalogID == 0 {
		return &catalog.MarkError{Kind: catalog.FailureRejected, Err: errors.New("missing catalog id")}
	}
	if c.accessToken == "" {
		return &catalog.MarkError{Kind: catalog.FailureAuth, Err: errors.New("no access token configured")}
	}

	var payload historyPayload
	if episode != nil {
		payload.Shows = []historyShow{{
			IDs: historyIDs{Simkl: item.CatalogID},
			Seasons: []historySeason{{
				Number:   episode.Season,
				Episodes: []historyEpisode{{Number: episode.Episode}},
			}},
		}}
	} else {
		payload.Movies = []historyMovie{{
			IDs:       historyIDs{Simkl: item.CatalogID},
			WatchedAt: time.Now().UTC().Format(time.RFC3339),
		}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &catalog.MarkError{Kind: catalog.FailureUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync/history", bytes.NewReader(body))
	if err != nil {
		return &catalog.MarkError{Kind: catalog.FailureUnknown, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &catalog.MarkError{Kind: catalog.FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &catalog.MarkError{Kind: catalog.FailureAuth, Err: fmt.Errorf("simkl returned %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		// Transient server trouble: worth queueing for a later flush.
		return &catalog.MarkError{Kind: catalog.FailureNetwork, Err: fmt.Errorf("simkl returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &catalog.MarkError{Kind: catalog.FailureRejected, Err: fmt.Errorf("simkl returned %d", resp.StatusCode)}
	default:
		return &catalog.MarkError{Kind: catalog.FailureUnknown, Err: fmt.Errorf("simkl returned %d", resp.StatusCode)}
	}
}

// IsConnected probes whether the Simkl API is reachable.
func (c *Client) IsConnected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	target, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("parse simkl url: %w", err)
	}
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return catalog.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("simkl returned %d (latency=%v)", resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode simkl response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("simkl-api-key", c.clientID)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}
