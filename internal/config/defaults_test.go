package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultFacilitiesWeight, cfg.Recommender.FacilitiesWeight)
	assert.Equal(t, DefaultPriceWeight, cfg.Recommender.PriceWeight)
	assert.Equal(t, DefaultLocationWeight, cfg.Recommender.LocationWeight)
	assert.Equal(t, DefaultTopN, cfg.Recommender.DefaultTopN)
	assert.Equal(t, DefaultRadiusKM, cfg.Recommender.DefaultRadiusKM)
	assert.True(t, cfg.Server.GRPC.Enabled)
}

func TestApplyDefaults_NilSafe(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Server.HTTP.Port = 7000
	cfg.Recommender.DefaultTopN = 3
	cfg.Listing.Source = "postgres"

	ApplyDefaults(cfg)

	assert.Equal(t, 7000, cfg.Server.HTTP.Port)
	assert.Equal(t, 3, cfg.Recommender.DefaultTopN)
	assert.Equal(t, "postgres", cfg.Listing.Source)
	assert.Equal(t, DefaultMaxTopN, cfg.Recommender.MaxTopN)
	assert.Equal(t, 0.0, cfg.Recommender.PriceWeight, "weights are never inferred from zero")
}
