package messaging

import (
	"testing"

	"github.com/nats-io/stan.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	nc, err := NewNATSClient(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, nc.Connected())
	assert.NoError(t, nc.Publish("ticket.reserved", map[string]int{"quantity": 1}))
	assert.NoError(t, nc.Close())

	_, err = nc.Subscribe("ticket.reserved", func(*stan.Msg) {})
	assert.Error(t, err)
	_, err = nc.SubscribeQueue("ticket.reserved", "workers", func(*stan.Msg) {})
	assert.Error(t, err)
}

func TestNilClientIsSafe(t *testing.T) {
	var nc *NATSClient
	assert.False(t, nc.Connected())
	assert.NoError(t, nc.Publish("ticket.created", nil))
	assert.NoError(t, nc.Close())
}
