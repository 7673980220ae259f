package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Weights are the per-matrix weights. Nil fields take the server default.
type Weights struct {
	Facilities *float64 `json:"facilities,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Location   *float64 `json:"location,omitempty"`
}

// Float returns a pointer to v, for building Weights literals.
func Float(v float64) *float64 { return &v }

type RecommendRequest struct {
	Property string   `json:"property"`
	Weights  *Weights `json:"weights,omitempty"`
	// TopN zero takes the server default.
	TopN int `json:"top_n,omitempty"`
}

type AppliedWeights struct {
	Facilities float64 `json:"facilities"`
	Price      float64 `json:"price"`
	Location   float64 `json:"location"`
}

type Recommendation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Link  string  `json:"link"`
}

type RecommendResponse struct {
	Property string           `json:"property"`
	Weights  AppliedWeights   `json:"weights"`
	TopN     int              `json:"top_n"`
	Results  []Recommendation `json:"results"`
	Snapshot string           `json:"snapshot"`
}

type NearbyProperty struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance_km"`
}

type NearbyResponse struct {
	Landmark   string           `json:"landmark"`
	RadiusKM   float64          `json:"radius_km"`
	Properties []NearbyProperty `json:"properties"`
}

// Stats is the serving state returned by a reload.
type Stats struct {
	Ready       bool      `json:"ready"`
	Source      string    `json:"source"`
	Properties  int       `json:"properties"`
	Landmarks   int       `json:"landmarks"`
	InstalledAt time.Time `json:"installed_at"`
	Served      int64     `json:"served"`
	Failed      int64     `json:"failed"`
}

// Recommend ranks the properties most similar to req.Property.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	var out RecommendResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/recommendations", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nearby lists properties within radiusKM of landmark. Zero radius takes
// the server default.
func (c *Client) Nearby(ctx context.Context, landmark string, radiusKM float64) (*NearbyResponse, error) {
	q := url.Values{"landmark": {landmark}}
	if radiusKM != 0 {
		q.Set("radius_km", strconv.FormatFloat(radiusKM, 'f', -1, 64))
	}
	var out NearbyResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/nearby", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Properties(ctx context.Context) ([]string, error) {
	var out struct {
		Properties []string `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/properties", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Properties, nil
}

func (c *Client) Landmarks(ctx context.Context) ([]string, error) {
	var out struct {
		Landmarks []string `json:"landmarks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/landmarks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Landmarks, nil
}

// Reload asks the server to reload its snapshot from the configured source.
func (c *Client) Reload(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/reload", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//Personal.AI order the ending
