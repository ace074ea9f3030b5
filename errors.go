package wsserver

import "errors"

// Sentinel errors wrapped with fmt.Errorf and %w so callers can errors.Is
// against these, whether they arrive from a facade method's return value or
// an OnError callback's err argument.
var (
	// ErrNotFound is returned by Server facade methods when a clientId is
	// unknown to the registry, or its transport has already been destroyed.
	ErrNotFound = errors.New("wsserver: client not found")

	// ErrProtocolViolation is delivered to OnError immediately before a
	// close with code 1003 (Unacceptable Data Type): invalid frame, reserved
	// opcode, oversized control frame, or an unmasked frame.
	ErrProtocolViolation = errors.New("wsserver: protocol violation")

	// ErrPayloadTooBig is delivered to OnError immediately before a close
	// with code 1009 (Message Too Big): cumulative fragmented payload
	// exceeded maxPayload.
	ErrPayloadTooBig = errors.New("wsserver: payload exceeds limit")

	// ErrLivenessFailure is delivered to OnError immediately before a close
	// with code 1011 (Unexpected Condition): a ping went unanswered past
	// pongTimeout.
	ErrLivenessFailure = errors.New("wsserver: pong deadline expired")

	// ErrTransportFailure is delivered to OnError immediately before a close
	// with code 1006 (Closed Abnormally) triggered by the inbound-ping
	// coalescing abort timer. A transport read failure also closes with
	// 1006, but carries the underlying *net.OpError instead of this
	// sentinel.
	ErrTransportFailure = errors.New("wsserver: transport closed abnormally")

	// ErrTooManyConnections is logged when a handshake is rejected under the
	// per-IP cap (HTTP 429); there is no clientId yet to deliver it to
	// OnError.
	ErrTooManyConnections = errors.New("wsserver: too many connections from origin IP")
)

// CloseReason pairs a WebSocket close status code with its human-readable
// message, delivered on the "close" event per spec section 6.
type CloseReason struct {
	Code    int
	Message string
}

var (
	closeNormal       = CloseReason{1000, "Close Normal"}
	closeAbnormal     = CloseReason{1006, "Closed Abnormally"}
	closeUnacceptable = CloseReason{1003, "Unacceptable Data Type"}
	closeTooBig       = CloseReason{1009, "Message Too Big"}
	closeUnexpected   = CloseReason{1011, "Unexpected Condition"}
)
