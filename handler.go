package wsserver

import (
	"time"
)

// handleFrame advances the per-connection state machine of spec section 4.3
// for a single decoded frame. It returns (true, reason) when the connection
// must be torn down. It is called without c.mu held, from this client's
// single reader goroutine, which is the sole writer of pendingFragments and
// receiveBuffer.
func (s *Server) handleFrame(c *ClientRecord, f Frame) (terminate bool, reason CloseReason) {
	switch {
	case f.Opcode == OpText || f.Opcode == OpBinary:
		return s.handleDataFrame(c, f)

	case f.Opcode == OpContinuation:
		return s.handleContinuationFrame(c, f)

	case f.Opcode == OpClose:
		// teardown is the sole emitter of the close event; it runs this
		// reason through s.emitter.emitClose once the connection is removed
		// from the registry.
		return true, closeNormal

	case f.Opcode == OpPing:
		if len(f.Payload) > 125 {
			s.emitter.emitError(c.id, ErrProtocolViolation)
			return true, closeUnacceptable
		}
		s.liveness.handleInboundPing(s, c, f.Payload)
		return false, CloseReason{}

	case f.Opcode == OpPong:
		if len(f.Payload) > 125 {
			s.emitter.emitError(c.id, ErrProtocolViolation)
			return true, closeUnacceptable
		}
		s.liveness.handlePong(c, f.Payload)
		return false, CloseReason{}

	default:
		// reserved non-control (3-7) and reserved control (11-15)
		s.emitter.emitError(c.id, ErrProtocolViolation)
		return true, closeUnacceptable
	}
}

func (s *Server) handleDataFrame(c *ClientRecord, f Frame) (bool, CloseReason) {
	if len(c.pendingFragments) != 0 {
		// a new text/binary frame while a fragmented message is open is a
		// protocol violation (spec table, row 3).
		s.emitter.emitError(c.id, ErrProtocolViolation)
		return true, closeUnacceptable
	}

	if !s.withinPayloadLimit(c, f.PayloadLength) {
		s.emitter.emitError(c.id, ErrPayloadTooBig)
		return true, closeTooBig
	}

	if f.Fin {
		s.deliver(c, f.Opcode, f.Payload)
		return false, CloseReason{}
	}

	c.pendingFragments = append(c.pendingFragments, f)
	c.pendingLength = f.PayloadLength
	c.pendingOpcode = f.Opcode
	return false, CloseReason{}
}

func (s *Server) handleContinuationFrame(c *ClientRecord, f Frame) (bool, CloseReason) {
	if len(c.pendingFragments) == 0 {
		// continuation with nothing pending (spec table, row 4).
		s.emitter.emitError(c.id, ErrProtocolViolation)
		return true, closeUnacceptable
	}

	if !s.withinPayloadLimit(c, f.PayloadLength) {
		s.emitter.emitError(c.id, ErrPayloadTooBig)
		return true, closeTooBig
	}

	c.pendingFragments = append(c.pendingFragments, f)
	c.pendingLength += f.PayloadLength

	if !f.Fin {
		return false, CloseReason{}
	}

	total := make([]byte, 0, c.pendingLength)
	for _, frag := range c.pendingFragments {
		total = append(total, frag.Payload...)
	}
	opcode := c.pendingOpcode
	c.pendingFragments = nil
	c.pendingLength = 0
	c.pendingOpcode = 0

	s.deliver(c, opcode, total)
	return false, CloseReason{}
}

// withinPayloadLimit enforces invariant I3: the sum of already-pending
// fragment lengths plus the current frame's length must not exceed
// maxPayload, when maxPayload is enabled (> 0).
func (s *Server) withinPayloadLimit(c *ClientRecord, incoming uint64) bool {
	limit := s.getConfig().maxPayload
	if limit <= 0 {
		return true
	}
	return c.pendingLength+incoming <= uint64(limit)
}

// deliver decodes the assembled message per its opcode (text payloads use
// the configured encoding, binary payloads pass through raw) and emits it
// on the connection's fixed topic.
func (s *Server) deliver(c *ClientRecord, opcode byte, payload []byte) {
	if opcode == OpText {
		decoded, err := decodeText(payload, c.encoding)
		if err != nil {
			s.emitter.emitError(c.id, err)
			return
		}
		s.emitter.emitMessage(c.topic, c.id, decoded)
		return
	}
	s.emitter.emitMessage(c.topic, c.id, payload)
}

// armPongDeadline is used by the Liveness Manager when it dispatches an
// outbound ping (spec section 4.4). A deadline still pending from an earlier
// unanswered ping is kept, not pushed back, so later pings cannot postpone
// it.
func (c *ClientRecord) armPongDeadline(d time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ping.deadlineTimer != nil {
		return
	}
	if d > 0 {
		c.ping.deadlineTimer = time.AfterFunc(d, onExpire)
	}
}

func (c *ClientRecord) clearPongDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ping.deadlineTimer != nil {
		c.ping.deadlineTimer.Stop()
		c.ping.deadlineTimer = nil
	}
}
