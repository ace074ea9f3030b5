package wsserver

import (
	"bytes"
	"crypto/rand"
	"sync"
	"time"
)

const (
	// pongEmitDelay is the anti-DoS coalescing window of spec section 4.4:
	// at most one echoed pong per inbound ping burst every 3 seconds.
	pongEmitDelay = 3 * time.Second
	// pongAbortDelay is 3x the emit delay, matching spec section 4.4.
	pongAbortDelay = 3 * pongEmitDelay
)

// livenessManager runs the single server-wide periodic outbound-ping task
// of spec section 4.4 and the per-client inbound-ping coalescing pair.
type livenessManager struct {
	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
}

func newLivenessManager() *livenessManager {
	return &livenessManager{}
}

// reschedule (re)starts the periodic ping task at the given delay. Passing
// a non-positive delay disables periodic pings, matching spec section 6's
// "pingDelay < 1 disables periodic pings". Called under Server.configMu so
// that concurrent SetPingDelay calls reschedule atomically (spec 4.7).
func (l *livenessManager) reschedule(s *Server, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		close(l.stop)
		l.ticker.Stop()
		l.stop = nil
		l.ticker = nil
	}

	if delay <= 0 {
		return
	}

	l.ticker = time.NewTicker(delay)
	l.stop = make(chan struct{})
	go l.run(s, l.ticker, l.stop)
}

func (l *livenessManager) run(s *Server, ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pingAll()
		}
	}
}

// pingAll sends a fresh ping to every registered client, arming each one's
// pong deadline when pongTimeout is enabled.
func (s *Server) pingAll() {
	s.registry.mu.RLock()
	clients := make([]*ClientRecord, 0, len(s.registry.clients))
	for _, c := range s.registry.clients {
		clients = append(clients, c)
	}
	s.registry.mu.RUnlock()

	pongTimeout := s.getPongTimeout()
	for _, c := range clients {
		s.pingClient(c, pongTimeout)
	}
}

func (s *Server) pingClient(c *ClientRecord, pongTimeout time.Duration) {
	token := randomToken()

	c.mu.Lock()
	c.ping.expectedContent = token
	c.mu.Unlock()

	if err := s.writeControlFrame(c, OpPing, token); err != nil {
		return
	}

	c.armPongDeadline(pongTimeout, func() {
		if _, ok := s.registry.get(c.id); !ok {
			return
		}
		s.emitter.emitError(c.id, ErrLivenessFailure)
		s.teardown(c, &closeUnexpected)
	})
}

func randomToken() []byte {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return b
}

// handleInboundPing implements the anti-DoS coalescing of spec section 4.4:
// cancel any pending echo, schedule a fresh one 3s out, and arm a 9s abort
// timer the first time one isn't already running.
func (l *livenessManager) handleInboundPing(s *Server, c *ClientRecord, payload []byte) {
	c.mu.Lock()
	if c.pong.emitTimer != nil {
		c.pong.emitTimer.Stop()
	}
	payloadCopy := append([]byte(nil), payload...)
	c.pong.emitTimer = time.AfterFunc(pongEmitDelay, func() {
		_ = s.writeControlFrame(c, OpPong, payloadCopy)
		c.mu.Lock()
		if c.pong.abortTimer != nil {
			c.pong.abortTimer.Stop()
			c.pong.abortTimer = nil
		}
		c.mu.Unlock()
	})

	if c.pong.abortTimer == nil {
		c.pong.abortTimer = time.AfterFunc(pongAbortDelay, func() {
			if _, ok := s.registry.get(c.id); !ok {
				return
			}
			s.emitter.emitError(c.id, ErrTransportFailure)
			s.teardown(c, &closeAbnormal)
		})
	}
	c.mu.Unlock()
}

// handlePong implements spec section 4.4's pong reception rule: a matching
// payload rotates expectedContent and clears the deadline; a mismatch is
// silently tolerated.
func (l *livenessManager) handlePong(c *ClientRecord, payload []byte) {
	c.mu.Lock()
	matches := bytes.Equal(payload, c.ping.expectedContent)
	if matches {
		c.ping.expectedContent = nil
	}
	c.mu.Unlock()

	if matches {
		c.clearPongDeadline()
	}
}

// cancelTimers stops every timer owned by c. Called synchronously before
// removal from the registry so that timers firing afterward are guaranteed
// no-ops (spec section 5's cancellation guarantee).
func (c *ClientRecord) cancelTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ping.deadlineTimer != nil {
		c.ping.deadlineTimer.Stop()
		c.ping.deadlineTimer = nil
	}
	if c.pong.emitTimer != nil {
		c.pong.emitTimer.Stop()
		c.pong.emitTimer = nil
	}
	if c.pong.abortTimer != nil {
		c.pong.abortTimer.Stop()
		c.pong.abortTimer = nil
	}
}
