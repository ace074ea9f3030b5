package wsserver

import "sync"

// messageHandler is invoked for a topic with the clientId that produced the
// message and its decoded payload.
type messageHandler func(id string, payload []byte)

// lifecycleHandler is invoked for open/close/error events.
type lifecycleHandler func(id string, arg interface{})

// emitter is the dynamic, string-keyed event table spec section 9 calls for:
// topics are not known at compile time since they come from request paths,
// so listeners are registered and dispatched by string key, the same shape
// the teacher server uses for its opcode switch but generalized to an open
// set of names.
type emitter struct {
	mu       sync.RWMutex
	topics   map[string][]messageHandler
	open     []lifecycleHandler
	closeFns []lifecycleHandler
	errorFns []lifecycleHandler
}

func newEmitter() *emitter {
	return &emitter{topics: make(map[string][]messageHandler)}
}

// OnMessage registers fn to run whenever a text or binary message completes
// on the given topic (request path, or "message" for the root path).
func (e *emitter) OnMessage(topic string, fn messageHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics[topic] = append(e.topics[topic], fn)
}

// OnOpen registers fn to run when a handshake completes and a clientId is
// assigned.
func (e *emitter) OnOpen(fn lifecycleHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = append(e.open, fn)
}

// OnClose registers fn to run when a client is torn down. arg is a
// CloseReason value.
func (e *emitter) OnClose(fn lifecycleHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeFns = append(e.closeFns, fn)
}

// OnError registers fn to run on a transport-level failure. arg is an error.
func (e *emitter) OnError(fn lifecycleHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorFns = append(e.errorFns, fn)
}

func (e *emitter) emitMessage(topic, id string, payload []byte) {
	e.mu.RLock()
	fns := e.topics[topic]
	e.mu.RUnlock()
	for _, fn := range fns {
		fn(id, payload)
	}
}

func (e *emitter) emitOpen(id string) {
	e.mu.RLock()
	fns := e.open
	e.mu.RUnlock()
	for _, fn := range fns {
		fn(id, nil)
	}
}

func (e *emitter) emitClose(id string, reason CloseReason) {
	e.mu.RLock()
	fns := e.closeFns
	e.mu.RUnlock()
	for _, fn := range fns {
		fn(id, reason)
	}
}

func (e *emitter) emitError(id string, err error) {
	e.mu.RLock()
	fns := e.errorFns
	e.mu.RUnlock()
	for _, fn := range fns {
		fn(id, err)
	}
}

// topicForPath implements spec section 4.3's "fixed at connection open"
// routing rule: the root path maps to the literal topic "message".
func topicForPath(path string) string {
	if path == "" || path == "/" {
		return "message"
	}
	return path
}
