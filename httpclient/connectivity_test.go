package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkStatus(t *testing.T) {
	t.Parallel()

	t.Run("given zero value, then reports offline", func(t *testing.T) {
		t.Parallel()

		var ns NetworkStatus
		assert.False(t, ns.Online())
	})

	t.Run("given initial state, then reports it", func(t *testing.T) {
		t.Parallel()

		assert.True(t, NewNetworkStatus(true).Online())
		assert.False(t, NewNetworkStatus(false).Online())
	})

	t.Run("given SetOnline, then state flips", func(t *testing.T) {
		t.Parallel()

		ns := NewNetworkStatus(true)

		ns.SetOnline(false)
		assert.False(t, ns.Online())

		ns.SetOnline(true)
		assert.True(t, ns.Online())
	})
}

func TestConnectivityFunc(t *testing.T) {
	t.Parallel()

	online := false
	var c Connectivity = ConnectivityFunc(func() bool { return online })

	assert.False(t, c.Online())

	online = true
	assert.True(t, c.Online())
}

func TestAlwaysOnline(t *testing.T) {
	t.Parallel()

	assert.True(t, alwaysOnline{}.Online())
}
