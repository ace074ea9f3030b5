package wsserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// config holds the runtime-tunable options of spec section 6. Defaults
// match the spec's EXTERNAL INTERFACES table exactly.
type config struct {
	allowOrigin    []string // nil means same-host only; ["*"] means wildcard
	encoding       string
	limitByIP      int
	maxPayload     int
	pingDelay      time.Duration
	pongTimeout    time.Duration
	sessionExpires time.Duration
}

func defaultConfig() config {
	return config{
		allowOrigin:    nil,
		encoding:       EncodingUTF8,
		limitByIP:      256,
		maxPayload:     2621440,
		pingDelay:      180 * time.Second,
		pongTimeout:    5 * time.Second,
		sessionExpires: 12 * time.Hour,
	}
}

// Option configures a Server at construction time.
type Option func(*config)

func WithAllowOrigin(origins ...string) Option {
	return func(c *config) { c.allowOrigin = origins }
}

func WithEncoding(encoding string) Option {
	return func(c *config) {
		if validEncoding(encoding) {
			c.encoding = encoding
		}
	}
}

func WithLimitByIP(n int) Option {
	return func(c *config) { c.limitByIP = n }
}

func WithMaxPayload(n int) Option {
	return func(c *config) { c.maxPayload = n }
}

func WithPingDelay(d time.Duration) Option {
	return func(c *config) { c.pingDelay = d }
}

func WithPongTimeout(d time.Duration) Option {
	return func(c *config) { c.pongTimeout = d }
}

func WithSessionExpires(d time.Duration) Option {
	return func(c *config) { c.sessionExpires = d }
}

// Server is the Public Facade of spec section 4.7: it owns the Client
// Registry, the topic emitter, and the Liveness Manager, and exposes the
// per-client operations application code calls.
type Server struct {
	configMu sync.RWMutex
	config   config

	registry *registry
	emitter  *emitter
	liveness *livenessManager
	log      zerolog.Logger
}

// NewServer constructs a Server with the given options applied over the
// spec section 6 defaults, and starts the periodic ping task if pingDelay
// is enabled.
func NewServer(opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		config:   cfg,
		registry: newRegistry(),
		emitter:  newEmitter(),
		liveness: newLivenessManager(),
		log:      defaultLogger(),
	}
	s.liveness.reschedule(s, cfg.pingDelay)
	return s
}

// On registers an application message handler for topic (a request path,
// or "message" for the root path).
func (s *Server) On(topic string, fn func(id string, payload []byte)) {
	s.emitter.OnMessage(topic, fn)
}

// OnOpen registers a handler invoked when a handshake completes.
func (s *Server) OnOpen(fn func(id string)) {
	s.emitter.OnOpen(func(id string, _ interface{}) { fn(id) })
}

// OnClose registers a handler invoked when a client is torn down.
func (s *Server) OnClose(fn func(id string, reason CloseReason)) {
	s.emitter.OnClose(func(id string, arg interface{}) {
		if r, ok := arg.(CloseReason); ok {
			fn(id, r)
		}
	})
}

// OnError registers a handler invoked on a transport-level failure.
func (s *Server) OnError(fn func(id string, err error)) {
	s.emitter.OnError(func(id string, arg interface{}) {
		if err, ok := arg.(error); ok {
			fn(id, err)
		}
	})
}

func (s *Server) getConfig() config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

func (s *Server) getPongTimeout() time.Duration {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config.pongTimeout
}

// SetPingDelay reschedules the periodic outbound-ping task atomically, per
// spec section 4.7. A non-positive value disables periodic pings.
func (s *Server) SetPingDelay(d time.Duration) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.pingDelay = d
	s.liveness.reschedule(s, d)
}

// SetPongTimeout updates the per-ping deadline applied to subsequent pings.
func (s *Server) SetPongTimeout(d time.Duration) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.pongTimeout = d
}

// SetMaxPayload updates the cumulative fragmented-payload limit. Values
// < 1 disable the limit, per spec section 6.
func (s *Server) SetMaxPayload(n int) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.maxPayload = n
}

// SetLimitByIP updates the per-IP admission cap. Values < 1 disable it.
func (s *Server) SetLimitByIP(n int) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.limitByIP = n
}

// SetEncoding updates the text-payload decoding scheme. Invalid values are
// silently ignored, keeping the prior value, per spec section 4.7.
func (s *Server) SetEncoding(encoding string) {
	if !validEncoding(encoding) {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.encoding = encoding
}

// SetAllowOrigin replaces the origin allow-list.
func (s *Server) SetAllowOrigin(origins ...string) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.allowOrigin = origins
}

// SetSessionExpires updates the sticky-session window. Values < 1 disable
// sticky identity.
func (s *Server) SetSessionExpires(d time.Duration) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.sessionExpires = d
}

// --- Public Facade per-client operations (spec section 4.7) ---

func (s *Server) client(id string) (*ClientRecord, error) {
	c, ok := s.registry.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Send writes data to the client as a single, final frame. The opcode is
// chosen from isText: Text (1) or Binary (2).
func (s *Server) Send(id string, data []byte, isText bool) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	opcode := byte(OpBinary)
	if isText {
		opcode = OpText
	}
	return s.writeFrame(c, opcode, data)
}

// Ping sends an application-triggered ping, per spec section 4.7: the
// expected content is the clientId itself (see DESIGN.md for the open
// question this resolves), and pongTimeout arms a deadline when > 0.
func (s *Server) Ping(id string, pongTimeout time.Duration) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ping.expectedContent = []byte(id)
	c.mu.Unlock()

	if err := s.writeControlFrame(c, OpPing, []byte(id)); err != nil {
		return err
	}

	if pongTimeout > 0 {
		c.armPongDeadline(pongTimeout, func() {
			if _, ok := s.registry.get(c.id); !ok {
				return
			}
			s.emitter.emitError(c.id, ErrLivenessFailure)
			s.teardown(c, &closeUnexpected)
		})
	}
	return nil
}

// Close ends and destroys the client's transport and removes it from the
// registry. Idempotent: returns ErrNotFound if the id is unknown.
func (s *Server) Close(id string) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	s.teardown(c, &closeNormal)
	return nil
}

// URL returns the client record holding the parsed request URL captured at
// handshake time.
func (s *Server) URL(id string) (*ClientRecord, error) {
	return s.client(id)
}

func (s *Server) BytesRead(id string) (uint64, error) {
	c, err := s.client(id)
	if err != nil {
		return 0, err
	}
	return c.transport.BytesRead(), nil
}

func (s *Server) BytesWritten(id string) (uint64, error) {
	c, err := s.client(id)
	if err != nil {
		return 0, err
	}
	return c.transport.BytesWritten(), nil
}

func (s *Server) IsPaused(id string) (bool, error) {
	c, err := s.client(id)
	if err != nil {
		return false, err
	}
	return c.transport.IsPaused(), nil
}

func (s *Server) Pause(id string) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	c.transport.Pause()
	return nil
}

func (s *Server) Resume(id string) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	c.transport.Resume()
	return nil
}

func (s *Server) SetNoDelay(id string, on bool) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	return c.transport.SetNoDelay(on)
}

func (s *Server) SetKeepAlive(id string, on bool) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	return c.transport.SetKeepAlive(on)
}

// SetClientEncoding proxies the per-client transport inspector "setEncoding"
// of spec section 4.7. It does not affect text-payload decoding, which
// follows the server-wide encoding Option captured on the client at open.
func (s *Server) SetClientEncoding(id string, encoding string) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	c.transport.SetReadEncoding(encoding)
	return nil
}

// writeFrame and writeControlFrame serialize all writes to a client's
// transport through its mutex, preserving per-connection wire order across
// concurrent Send/Ping/teardown calls (spec section 5 ordering guarantee).
func (s *Server) writeFrame(c *ClientRecord, opcode byte, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: %s", ErrNotFound, c.id)
	}
	_, err := c.transport.Write(encodeFrame(payload, opcode))
	return err
}

func (s *Server) writeControlFrame(c *ClientRecord, opcode byte, payload []byte) error {
	return s.writeFrame(c, opcode, payload)
}

// teardown implements the terminal-close path shared by every close
// trigger in spec section 6's close-code mapping: cancel timers, emit the
// close event, close the transport, and remove the client from the
// registry.
func (s *Server) teardown(c *ClientRecord, reason *CloseReason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancelTimers()

	if !s.registry.remove(c.id) {
		return
	}

	if reason != nil {
		if reason.Code != closeAbnormal.Code {
			c.mu.Lock()
			_, _ = c.transport.Write(encodeFrame(closePayload(*reason), OpClose))
			c.mu.Unlock()
		}
		s.emitter.emitClose(c.id, *reason)
		s.log.Debug().Str("client", c.id).Int("code", reason.Code).Msg("connection closed")
	}

	_ = c.transport.Close()
}

func closePayload(r CloseReason) []byte {
	payload := make([]byte, 2+len(r.Message))
	payload[0] = byte(r.Code >> 8)
	payload[1] = byte(r.Code)
	copy(payload[2:], r.Message)
	return payload
}
