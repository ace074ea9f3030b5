package wsserver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseBlocksRead(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ct := &countingTransport{Transport: server}
	ct.Pause()

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 16)
		ct.waitIfPaused()
		_, _ = ct.Read(buf)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("read proceeded while transport was paused")
	case <-time.After(100 * time.Millisecond):
	}

	ct.Resume()
	_, err := client.Write([]byte("hi"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read never proceeded after resume")
	}
}

func TestIsPausedReflectsState(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ct := &countingTransport{Transport: server}
	assert.False(t, ct.IsPaused())

	ct.Pause()
	assert.True(t, ct.IsPaused())

	ct.Resume()
	assert.False(t, ct.IsPaused())
}
