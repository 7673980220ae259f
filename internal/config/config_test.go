package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"http port out of range", func(c *Config) { c.Server.HTTP.Port = 70000 }, "server.http.port"},
		{"bad mode", func(c *Config) { c.Server.HTTP.Mode = "prod" }, "server.http.mode"},
		{"grpc collides with http", func(c *Config) { c.Server.GRPC.Port = c.Server.HTTP.Port }, "collides"},
		{"grpc disabled ignores port", func(c *Config) {
			c.Server.GRPC.Enabled = false
			c.Server.GRPC.Port = -1
		}, ""},
		{"nan weight", func(c *Config) { c.Recommender.PriceWeight = math.NaN() }, "price_weight"},
		{"negative weight allowed", func(c *Config) { c.Recommender.LocationWeight = -0.5 }, ""},
		{"zero top_n", func(c *Config) { c.Recommender.DefaultTopN = 0 }, "default_top_n"},
		{"max below default", func(c *Config) { c.Recommender.MaxTopN = 2 }, "max_top_n"},
		{"negative max", func(c *Config) { c.Recommender.MaxTopN = -1 }, "max_top_n"},
		{"uncapped max", func(c *Config) { c.Recommender.MaxTopN = 0 }, ""},
		{"radius above max", func(c *Config) { c.Recommender.DefaultRadiusKM = 80 }, "default_radius_km"},
		{"unknown snapshot source", func(c *Config) { c.Snapshot.Source = "s3" }, "snapshot.source"},
		{"file source needs dir", func(c *Config) { c.Snapshot.Dir = "" }, "snapshot.dir"},
		{"minio source needs bucket", func(c *Config) {
			c.Snapshot.Source = "minio"
			c.Storage.MinIO.Bucket = ""
		}, "storage.minio"},
		{"unknown listing source", func(c *Config) { c.Listing.Source = "mongo" }, "listing.source"},
		{"postgres listing needs user", func(c *Config) { c.Listing.Source = "postgres" }, "database.postgres"},
		{"postgres listing ok", func(c *Config) {
			c.Listing.Source = "postgres"
			c.Database.Postgres.User = "aptrec"
		}, ""},
		{"bad breaker ratio", func(c *Config) { c.Listing.Breaker.FailureRatio = 1.5 }, "failure_ratio"},
		{"kafka needs brokers", func(c *Config) {
			c.Messaging.Kafka.Enabled = true
			c.Messaging.Kafka.Brokers = nil
		}, "brokers"},
		{"ratelimit needs burst", func(c *Config) { c.RateLimit.Burst = 0 }, "ratelimit"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
