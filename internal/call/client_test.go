package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peermeet/peermeet/internal/signaling"
)

func TestSendMessageUnblocksOnClose(t *testing.T) {
	client := NewClient("ws://unused")

	// With no write pump draining, fill the buffer so the next send
	// has to park.
	for i := 0; i < cap(client.outgoing); i++ {
		require.NoError(t, client.SendMessage(&signaling.Message{Type: signaling.TypeOffer}))
	}

	result := make(chan error, 1)
	go func() {
		result <- client.SendMessage(&signaling.Message{Type: signaling.TypeOffer})
	}()

	// The send must be parked, not failed.
	select {
	case err := <-result:
		t.Fatalf("send returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	client.Close()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("send stayed blocked after close")
	}
}

func TestConnectionLossClosesClient(t *testing.T) {
	_, wsURL := startSignalingServer(t)

	client := NewClient(wsURL)
	require.NoError(t, client.Connect())

	// httptest.Server stops tracking hijacked connections, so sever
	// the client's underlying conn directly.
	require.NoError(t, client.conn.Close())

	// The pumps notice the dead connection and close the client, so
	// sends fail instead of blocking forever.
	require.Eventually(t, func() bool {
		select {
		case <-client.done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond, "connection death never closed the client")

	for i := 0; i <= cap(client.outgoing); i++ {
		if err := client.SendMessage(&signaling.Message{Type: signaling.TypeOffer}); err != nil {
			assert.ErrorIs(t, err, ErrNotConnected)
			return
		}
	}
	t.Fatal("sends kept succeeding on a closed client")
}
