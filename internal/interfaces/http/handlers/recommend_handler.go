package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/pkg/errors"
)

// RecommendService is the application surface the HTTP handlers use.
type RecommendService interface {
	Recommend(ctx context.Context, in recommend.RecommendInput) (*recommend.RecommendOutput, error)
	Nearby(ctx context.Context, in recommend.NearbyInput) (*recommend.NearbyOutput, error)
	Properties(ctx context.Context) ([]string, error)
	Landmarks(ctx context.Context) ([]string, error)
	Reload(ctx context.Context) (*recommend.Stats, error)
	Options() recommend.Options
}

type RecommendHandler struct {
	svc RecommendService
}

func NewRecommendHandler(svc RecommendService) *RecommendHandler {
	return &RecommendHandler{svc: svc}
}

// WeightsRequest allows any subset of weights; absent ones take defaults.
type WeightsRequest struct {
	Facilities *float64 `json:"facilities"`
	Price      *float64 `json:"price"`
	Location   *float64 `json:"location"`
}

type RecommendRequest struct {
	Property string          `json:"property" binding:"required"`
	Weights  *WeightsRequest `json:"weights"`
	TopN     int             `json:"top_n"`
}

func (h *RecommendHandler) merge(w *WeightsRequest) similarity.Weights {
	out := h.svc.Options().Weights
	if w == nil {
		return out
	}
	if w.Facilities != nil {
		out.Facilities = *w.Facilities
	}
	if w.Price != nil {
		out.Price = *w.Price
	}
	if w.Location != nil {
		out.Location = *w.Location
	}
	return out
}

// Create handles POST /api/v1/recommendations.
func (h *RecommendHandler) Create(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
		return
	}
	w := h.merge(req.Weights)
	h.respond(c, recommend.RecommendInput{Property: req.Property, Weights: &w, TopN: req.TopN, Transport: "http"})
}

// Get handles GET /api/v1/recommendations.
func (h *RecommendHandler) Get(c *gin.Context) {
	property := c.Query("property")
	if property == "" {
		writeError(c, errors.InvalidParam("property is required"))
		return
	}

	var wr WeightsRequest
	for name, dst := range map[string]**float64{
		"w_facilities": &wr.Facilities,
		"w_price":      &wr.Price,
		"w_location":   &wr.Location,
	} {
		v, ok, err := optionalFloat(c, name)
		if err != nil {
			writeError(c, err)
			return
		}
		if ok {
			val := v
			*dst = &val
		}
	}
	topN, err := optionalInt(c, "top_n")
	if err != nil {
		writeError(c, err)
		return
	}

	w := h.merge(&wr)
	h.respond(c, recommend.RecommendInput{Property: property, Weights: &w, TopN: topN, Transport: "http"})
}

func (h *RecommendHandler) respond(c *gin.Context, in recommend.RecommendInput) {
	out, err := h.svc.Recommend(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Nearby handles GET /api/v1/nearby.
func (h *RecommendHandler) Nearby(c *gin.Context) {
	name := c.Query("landmark")
	if name == "" {
		writeError(c, errors.InvalidParam("landmark is required"))
		return
	}
	radius, _, err := optionalFloat(c, "radius_km")
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.svc.Nearby(c.Request.Context(), recommend.NearbyInput{Landmark: name, RadiusKM: radius})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Properties handles GET /api/v1/properties.
func (h *RecommendHandler) Properties(c *gin.Context) {
	names, err := h.svc.Properties(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": names, "count": len(names)})
}

// Landmarks handles GET /api/v1/landmarks.
func (h *RecommendHandler) Landmarks(c *gin.Context) {
	names, err := h.svc.Landmarks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"landmarks": names, "count": len(names)})
}

// Reload handles POST /api/v1/admin/reload.
func (h *RecommendHandler) Reload(c *gin.Context) {
	st, err := h.svc.Reload(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

//Personal.AI order the ending
