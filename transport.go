package wsserver

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is the narrow surface the engine needs from the underlying
// TCP/TLS connection (spec section 1's "out of scope: transport").
// *net.TCPConn and *tls.Conn satisfy it directly.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
}

// countingTransport wraps a Transport with the byte counters and
// pause/resume bookkeeping the Public Facade exposes per spec section 4.7
// ("bytesRead, bytesWritten, isPaused, pause, resume").
type countingTransport struct {
	Transport

	bytesRead    uint64
	bytesWritten uint64
	noDelay      bool
	keepAlive    bool

	pauseMu sync.Mutex
	paused  bool
	gate    chan struct{}

	readEncodingMu sync.RWMutex
	readEncoding   string
}

func (t *countingTransport) Read(p []byte) (int, error) {
	n, err := t.Transport.Read(p)
	atomic.AddUint64(&t.bytesRead, uint64(n))
	return n, err
}

func (t *countingTransport) Write(p []byte) (int, error) {
	n, err := t.Transport.Write(p)
	atomic.AddUint64(&t.bytesWritten, uint64(n))
	return n, err
}

func (t *countingTransport) BytesRead() uint64    { return atomic.LoadUint64(&t.bytesRead) }
func (t *countingTransport) BytesWritten() uint64 { return atomic.LoadUint64(&t.bytesWritten) }

// Pause and Resume implement spec section 5's backpressure operation: while
// paused, waitIfPaused blocks the Connection Reader loop before it issues
// its next Read, so no further data events are delivered until Resume.
func (t *countingTransport) Pause() {
	t.pauseMu.Lock()
	defer t.pauseMu.Unlock()
	if t.paused {
		return
	}
	t.paused = true
	t.gate = make(chan struct{})
}

func (t *countingTransport) Resume() {
	t.pauseMu.Lock()
	defer t.pauseMu.Unlock()
	if !t.paused {
		return
	}
	t.paused = false
	close(t.gate)
}

func (t *countingTransport) IsPaused() bool {
	t.pauseMu.Lock()
	defer t.pauseMu.Unlock()
	return t.paused
}

// waitIfPaused blocks until Resume is called, or returns immediately if the
// transport is not currently paused.
func (t *countingTransport) waitIfPaused() {
	t.pauseMu.Lock()
	gate := t.gate
	paused := t.paused
	t.pauseMu.Unlock()
	if paused {
		<-gate
	}
}

// tcpTuner is implemented by *net.TCPConn; SetNoDelay/SetKeepAlive proxy
// through it when the underlying transport supports it, a no-op otherwise.
type tcpTuner interface {
	SetNoDelay(bool) error
	SetKeepAlive(bool) error
}

func (t *countingTransport) SetNoDelay(on bool) error {
	if tc, ok := t.Transport.(tcpTuner); ok {
		return tc.SetNoDelay(on)
	}
	return nil
}

func (t *countingTransport) SetKeepAlive(on bool) error {
	if tc, ok := t.Transport.(tcpTuner); ok {
		return tc.SetKeepAlive(on)
	}
	return nil
}

// SetReadEncoding and ReadEncoding back the per-client "setEncoding"
// transport inspector of spec section 4.7 — distinct from the server-wide
// text-decode Option of the same name in section 6, this one is a bare
// proxy onto the stream's read encoding, mirrored here for inspection.
func (t *countingTransport) SetReadEncoding(encoding string) {
	t.readEncodingMu.Lock()
	defer t.readEncodingMu.Unlock()
	t.readEncoding = encoding
}

func (t *countingTransport) ReadEncoding() string {
	t.readEncodingMu.RLock()
	defer t.readEncodingMu.RUnlock()
	return t.readEncoding
}
