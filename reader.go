package wsserver

import (
	"errors"
	"io"
)

// serve is the Connection Reader of spec section 4.2: one goroutine per
// client, reading transport chunks, draining whatever complete frames they
// contain, and dispatching each to the Frame Handler in order. It owns
// receiveBuffer and pendingFragments for the lifetime of the connection.
func (s *Server) serve(c *ClientRecord) {
	defer s.teardown(c, nil)

	chunk := make([]byte, 64*1024)
	for {
		c.transport.waitIfPaused()

		n, err := c.transport.Read(chunk)
		if n > 0 {
			if terminate, reason := s.drain(c, chunk[:n]); terminate {
				s.teardown(c, &reason)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.teardown(c, &closeNormal)
				return
			}
			s.emitter.emitError(c.id, err)
			s.teardown(c, &closeAbnormal)
			return
		}
	}
}

// drain implements the repeated-decode loop of spec section 4.2 steps 1-4:
// append the new chunk to whatever partial frame was buffered, decode as
// many frames as are now complete, stash any trailing partial frame, and
// dispatch the rest in order.
func (s *Server) drain(c *ClientRecord, chunk []byte) (terminate bool, reason CloseReason) {
	buf := append(c.receiveBuffer, chunk...)
	c.receiveBuffer = nil

	frames, remainder, invalid := decodeFrames(buf)
	c.receiveBuffer = remainder

	for _, f := range frames {
		if t, r := s.handleFrame(c, f); t {
			return true, r
		}
	}

	if invalid {
		s.emitter.emitError(c.id, ErrProtocolViolation)
		return true, closeUnacceptable
	}
	return false, CloseReason{}
}
