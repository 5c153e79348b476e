// Package geocode resolves Singapore postal codes to coordinates via the
// OneMap search API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"nearbybot/pkg/geo"
	"nearbybot/pkg/request"
	"nearbybot/pkg/tracker"
)

const providerName = "onemap"

// Resolver resolves a postal code to a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, postalCode string) (geo.Point, error)
}

// Client queries the OneMap elastic search endpoint.
type Client struct {
	request  *request.Client
	tracker  *tracker.Tracker
	Endpoint string
	Token    string
	Logger   *slog.Logger
}

// NewClient creates a new OneMap client. A nil logger falls back to
// slog.Default.
func NewClient(r *request.Client, t *tracker.Tracker, endpoint, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		request:  r,
		tracker:  t,
		Endpoint: endpoint,
		Token:    token,
		Logger:   logger,
	}
}

// searchResponse mirrors the fields we read from the OneMap payload.
// Coordinates arrive as numeric strings.
type searchResponse struct {
	Results []struct {
		Latitude  string `json:"LATITUDE"`
		Longitude string `json:"LONGITUDE"`
	} `json:"results"`
}

// Resolve looks up a postal code and returns the first match's coordinates.
// The caller must have validated postalCode as a 6-digit string. Returns
// ErrNotFound when the service has no match and ErrInvalidCoordinates when
// the match's coordinates cannot be parsed.
func (c *Client) Resolve(ctx context.Context, postalCode string) (geo.Point, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Add("searchVal", postalCode)
	q.Add("returnGeom", "Y")
	q.Add("getAddrDetails", "Y")
	u.RawQuery = q.Encode()

	var headers map[string]string
	if c.Token != "" {
		headers = map[string]string{"Authorization": c.Token}
	}

	cacheKey := "onemap:postal:" + postalCode
	body, err := c.request.GetWithHeaders(ctx, u.String(), headers, cacheKey)
	if err != nil {
		return geo.Point{}, fmt.Errorf("onemap lookup failed: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return geo.Point{}, fmt.Errorf("failed to decode onemap response: %w", err)
	}

	if len(resp.Results) == 0 {
		c.tracker.TrackAPIZero(providerName)
		return geo.Point{}, ErrNotFound
	}

	// Take the first (best) match.
	result := resp.Results[0]
	lat, errLat := strconv.ParseFloat(result.Latitude, 64)
	lng, errLng := strconv.ParseFloat(result.Longitude, 64)
	if errLat != nil || errLng != nil || math.IsNaN(lat) || math.IsNaN(lng) {
		c.Logger.Warn("onemap returned unparseable coordinates",
			"postal", postalCode, "lat", result.Latitude, "lng", result.Longitude)
		return geo.Point{}, ErrInvalidCoordinates
	}

	return geo.Point{Lat: lat, Lng: lng}, nil
}
