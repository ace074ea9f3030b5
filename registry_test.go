package wsserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCountByIP(t *testing.T) {
	r := newRegistry()
	r.add(&ClientRecord{id: "a", peerIP: "10.0.0.1"})
	r.add(&ClientRecord{id: "b", peerIP: "10.0.0.1"})
	r.add(&ClientRecord{id: "c", peerIP: "10.0.0.2"})

	assert.Equal(t, 2, r.countByIP("10.0.0.1"))
	assert.Equal(t, 1, r.countByIP("10.0.0.2"))
	assert.Equal(t, 0, r.countByIP("10.0.0.3"))
}

func TestRegistryStickySessionReuse(t *testing.T) {
	r := newRegistry()
	r.rememberSession("abc123", time.Now().Add(time.Minute))

	id, ok := r.resolveSession("abc123", time.Now())
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
}

func TestRegistryStickySessionExpired(t *testing.T) {
	r := newRegistry()
	r.rememberSession("abc123", time.Now().Add(-time.Minute))

	_, ok := r.resolveSession("abc123", time.Now())
	assert.False(t, ok)
}

func TestRegistryStickySessionRejectedWhenLive(t *testing.T) {
	r := newRegistry()
	r.rememberSession("abc123", time.Now().Add(time.Minute))
	r.add(&ClientRecord{id: "abc123"})

	_, ok := r.resolveSession("abc123", time.Now())
	assert.False(t, ok, "a live connection's id must not be handed out again")
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := newRegistry()
	r.add(&ClientRecord{id: "x"})

	assert.True(t, r.remove("x"))
	assert.False(t, r.remove("x"))
}

func TestParseSessionCookie(t *testing.T) {
	assert.Equal(t, "abc", parseSessionCookie("jadsonlucena-websocket=abc"))
	assert.Equal(t, "abc", parseSessionCookie("foo=bar; jadsonlucena-websocket=abc; baz=qux"))
	assert.Equal(t, "", parseSessionCookie("foo=bar"))
}

func TestNextIDIsUnique(t *testing.T) {
	r := newRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.nextID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
