package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100, config.MaxIdleConns)
	assert.Equal(t, 10, config.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, config.IdleConnTimeout)
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("applies options", func(t *testing.T) {
		client := NewHTTPClient(WithTimeout(5*time.Second), WithMaxIdleConnsPerHost(4))

		assert.Equal(t, 5*time.Second, client.Timeout)
		transport, ok := client.Transport.(*http.Transport)
		require.True(t, ok)
		assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
	})
}
