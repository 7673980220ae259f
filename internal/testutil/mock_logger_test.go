package testutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/testutil"
)

func TestMockLogger_Records(t *testing.T) {
	logger := testutil.NewMockLogger()
	logger.Info("snapshot installed", logging.Int("properties", 4))

	messages := logger.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	v, ok := messages[0].FieldValue("properties")
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	logger.Clear()
	assert.Empty(t, logger.Messages())

	logger.Error("reload failed")
	assert.True(t, logger.HasMessage("error", "reload failed"))
	assert.False(t, logger.HasMessage("info", "reload failed"))
}

func TestMockLogger_ChildrenShareSink(t *testing.T) {
	logger := testutil.NewMockLogger()
	ctx := logging.ContextWithRequestID(context.Background(), "req-9")

	logger.Named("http").WithContext(ctx).With(logging.String("route", "/x")).Warn("slow")

	entry, ok := logger.Find("warn", "slow")
	require.True(t, ok)
	id, _ := entry.FieldValue(logging.RequestIDKey)
	assert.Equal(t, "req-9", id)
	name, _ := entry.FieldValue("logger")
	assert.Equal(t, "http", name)
}

func TestFixtureSnapshot(t *testing.T) {
	store, table := testutil.FixtureStore(t), testutil.FixtureLandmarks(t)
	assert.Equal(t, 4, store.Size())
	assert.NotEmpty(t, table.Landmarks())
	assert.Len(t, testutil.FixtureListings(), 4)
}
