package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectMongoRejectsBadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-mongo-uri", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo connect")
}

func TestConnectWithRetryGivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectWithRetry(context.Background(), "not-a-mongo-uri", time.Second, 3, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConnectWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectWithRetry(ctx, "not-a-mongo-uri", time.Second, 5, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
