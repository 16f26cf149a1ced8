package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("redis://:secret@localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://not-redis")
	assert.Error(t, err)
}
