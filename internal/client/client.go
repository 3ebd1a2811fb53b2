// Package client talks to the matching backend: location updates, match
// checks, and active-count queries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Per-request deadline. Kept well under the minimum polling interval so
// cycles cannot pile up behind a stalled backend.
const requestTimeout = 10 * time.Second

const maxBodyBytes = 1 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FatalError reports a 401/403 from the backend. It models revoked consent
// or an expired session and requires the poller to disable itself durably.
type FatalError struct {
	StatusCode int
	Endpoint   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s rejected with status %d", e.Endpoint, e.StatusCode)
}

// Auth carries the per-call backend coordinates. Values are snapshotted by
// the caller at the start of a poll cycle.
type Auth struct {
	BaseURL     string
	AccessToken string
}

// MatchCheck is the normalized result of one match-check call. HasLatest is
// false when the backend returned no match object at all, in which case the
// remaining fields are zero.
type MatchCheck struct {
	HasNewMatch bool
	HasLatest   bool
	MatchID     int64
	User1ID     int64
	User2ID     int64
	DistanceM   float64
	MatchScore  int
}

// Client issues the three backend calls. Transient failures (network errors,
// malformed bodies, non-2xx other than 401/403) are absorbed here and degrade
// to neutral results; only fatal rejections surface as errors.
type Client struct {
	http HTTPClient
	log  *slog.Logger
}

// New creates a Client with the given HTTP client.
func New(httpClient HTTPClient, log *slog.Logger) *Client {
	return &Client{http: httpClient, log: log}
}

// PostLocation reports the device position to the backend. Non-2xx responses
// other than 401/403 are ignored as transient.
func (c *Client) PostLocation(ctx context.Context, auth Auth, lat, lon float64) error {
	body := fmt.Sprintf(`{"latitude":%s,"longitude":%s}`,
		formatCoord(Round6(lat)), formatCoord(Round6(lon)))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		auth.BaseURL+"/users/location/update/", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setCommonHeaders(req, auth.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("location update failed", "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if err := fatalStatus(resp.StatusCode, "location update"); err != nil {
		return err
	}
	return nil
}

// CheckMatch asks the backend whether a match exists near the given position.
// Any transient failure yields a zero MatchCheck instead of an error.
func (c *Client) CheckMatch(ctx context.Context, auth Auth, lat, lon, radiusKm float64) (MatchCheck, error) {
	url := fmt.Sprintf("%s/matching/check/?latitude=%s&longitude=%s&radius=%s",
		auth.BaseURL, formatCoord(Round6(lat)), formatCoord(Round6(lon)), formatCoord(radiusKm))

	body, err := c.get(ctx, auth, url, "match check")
	if err != nil {
		return MatchCheck{}, err
	}
	if body == nil {
		return MatchCheck{}, nil
	}

	var parsed matchCheckBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Debug("malformed match check body", "error", err)
		return MatchCheck{}, nil
	}

	result := MatchCheck{HasNewMatch: parsed.HasNewMatch}
	if parsed.LatestMatch != nil {
		result.HasLatest = true
		result.MatchID = parsed.LatestMatch.ID
		if parsed.LatestMatch.User1 != nil {
			result.User1ID = parsed.LatestMatch.User1.ID
		}
		if parsed.LatestMatch.User2 != nil {
			result.User2ID = parsed.LatestMatch.User2.ID
		}
		if parsed.LatestMatch.MatchedCriteria != nil {
			result.DistanceM = parsed.LatestMatch.MatchedCriteria.DistanceM
			result.MatchScore = parsed.LatestMatch.MatchedCriteria.MatchScore
		}
	}
	return result, nil
}

// FetchActiveCount returns the number of matchable users near the given
// position. The second return value is false when the count is unknown
// because the call failed transiently.
func (c *Client) FetchActiveCount(ctx context.Context, auth Auth, lat, lon, maxDistanceKm float64) (int, bool, error) {
	url := fmt.Sprintf("%s/matching/active-count/?latitude=%s&longitude=%s&max_distance=%s",
		auth.BaseURL, formatCoord(Round6(lat)), formatCoord(Round6(lon)), formatCoord(maxDistanceKm))

	body, err := c.get(ctx, auth, url, "active count")
	if err != nil {
		return 0, false, err
	}
	if body == nil {
		return 0, false, nil
	}

	// The count may arrive bare or nested under a "data" wrapper.
	var parsed activeCountBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Debug("malformed active count body", "error", err)
		return 0, false, nil
	}
	count := parsed.Count
	if parsed.Data != nil {
		count = parsed.Data.Count
	}
	if count < 0 {
		c.log.Debug("negative active count", "count", count)
		return 0, false, nil
	}
	return count, true, nil
}

// get performs an authorized GET. It returns (nil, nil) on any transient
// failure and a FatalError on 401/403.
func (c *Client) get(ctx context.Context, auth Auth, url, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setCommonHeaders(req, auth.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "endpoint", endpoint, "error", err)
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if err := fatalStatus(resp.StatusCode, endpoint); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("unexpected status", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func setCommonHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	// Marks the request as coming from a non-foreground execution context.
	req.Header.Set("X-App-State", "background")
}

func fatalStatus(status int, endpoint string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &FatalError{StatusCode: status, Endpoint: endpoint}
	}
	return nil
}

// Round6 rounds a coordinate to 6 decimal places, half up. Idempotent.
func Round6(v float64) float64 {
	return math.Floor(v*1e6+0.5) / 1e6
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type matchCheckBody struct {
	HasNewMatch bool `json:"has_new_match"`
	LatestMatch *struct {
		ID    int64 `json:"id"`
		User1 *struct {
			ID int64 `json:"id"`
		} `json:"user1"`
		User2 *struct {
			ID int64 `json:"id"`
		} `json:"user2"`
		MatchedCriteria *struct {
			DistanceM  float64 `json:"distance_m"`
			MatchScore int     `json:"match_score"`
		} `json:"matched_criteria"`
	} `json:"latest_match"`
}

type activeCountBody struct {
	Count int `json:"count"`
	Data  *struct {
		Count int `json:"count"`
	} `json:"data"`
}
