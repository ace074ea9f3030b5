package wsserver

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// pingState tracks the Liveness Manager's outbound ping per spec section 3.
type pingState struct {
	expectedContent []byte
	deadlineTimer   *time.Timer
}

// pongState tracks the anti-DoS inbound-ping coalescing pair of timers
// described in spec section 4.4.
type pongState struct {
	emitTimer  *time.Timer
	abortTimer *time.Timer
}

// ClientRecord is the per-connection state spec section 3 describes. A
// single goroutine (the Connection Reader loop for this client) owns
// pendingFragments and receiveBuffer; mu guards the fields the Liveness
// Manager and Public Facade reach from other goroutines.
type ClientRecord struct {
	mu sync.Mutex

	id        string
	transport *countingTransport
	peerIP    string
	url       *url.URL
	topic     string
	encoding  string

	receiveBuffer    []byte
	pendingFragments []Frame
	pendingLength    uint64
	pendingOpcode    byte

	ping pingState
	pong pongState

	closed bool
}

// ID returns the client's registry identifier.
func (c *ClientRecord) ID() string { return c.id }

// URL returns the parsed request URL used for topic routing (spec 4.7 url).
func (c *ClientRecord) URL() *url.URL { return c.url }

// registry implements the Client Registry of spec section 4.5: identity,
// per-IP limits, and sticky-session lookup by cookie value.
type registry struct {
	mu      sync.RWMutex
	clients map[string]*ClientRecord

	sessions map[string]sessionEntry
}

type sessionEntry struct {
	expiresAt time.Time
}

func newRegistry() *registry {
	return &registry{
		clients:  make(map[string]*ClientRecord),
		sessions: make(map[string]sessionEntry),
	}
}

// countByIP implements the linear per-IP scan spec section 4.5 accepts as
// "acceptable under the implicit bound of limitByIP x number-of-distinct-IPs".
func (r *registry) countByIP(ip string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clients {
		if c.peerIP == ip {
			n++
		}
	}
	return n
}

func (r *registry) add(c *ClientRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.id] = c
}

func (r *registry) get(id string) (*ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	return true
}

// live reports whether id currently names a connected client, used to
// decide whether a cookie-supplied id may be reused (spec 4.5: "a known id
// not currently bound to a live connection").
func (r *registry) live(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// nextID allocates a fresh registry identifier. shortuuid is used for the
// common path (a short, URL-safe, hex/UUID-like token per spec section 3);
// on the exceedingly unlikely case of a collision against a live client it
// falls back to a full uuid.New() draw, which carries enough entropy that a
// second collision never needs to be considered.
func (r *registry) nextID() string {
	id := shortuuid.New()
	if !r.live(id) {
		return id
	}
	return uuid.NewString()
}

// rememberSession records that id (an already-issued clientId) may be
// reused until expiresAt, per spec section 4.5's sticky-session rule.
func (r *registry) rememberSession(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = sessionEntry{expiresAt: expiresAt}
}

// resolveSession returns id if it was issued before and its sticky window
// has not elapsed and it is not currently bound to a live connection.
func (r *registry) resolveSession(id string, now time.Time) (string, bool) {
	if id == "" {
		return "", false
	}
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || now.After(entry.expiresAt) {
		return "", false
	}
	if r.live(id) {
		return "", false
	}
	return id, true
}

// peerIP extracts the bare IP (no port) from a net.Addr, used for both
// per-IP admission control and registry bookkeeping.
func peerIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// cookieName is the sticky-session cookie spec section 4.5 and 6 name.
const cookieName = "jadsonlucena-websocket"

// parseSessionCookie extracts the sticky-session id from a raw Cookie
// header, if present.
func parseSessionCookie(cookieHeader string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if ok && k == cookieName {
			return v
		}
	}
	return ""
}
