package wsserver

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// wsGUID is the magic value RFC 6455 section 1.3 defines for computing
// Sec-WebSocket-Accept.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HandleUpgrade is the Handshake Controller of spec section 4.6. It is
// wired as an http.HandlerFunc; on a qualifying request it hijacks the
// underlying connection, writes the 101 response, and starts the
// Connection Reader goroutine. Rejections of the request itself (400, 403,
// 426) write the HTTP status and return without hijacking; the per-IP
// rejection (429) is written on the hijacked connection, which is then
// closed.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	version := r.Header.Get("Sec-WebSocket-Version")
	if version != "8" && version != "13" {
		w.Header().Set("Sec-WebSocket-Version", "13, 8")
		w.WriteHeader(http.StatusUpgradeRequired)
		return
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		origin = strings.TrimSpace(r.Header.Get("Sec-WebSocket-Origin"))
	}
	if !s.originAllowed(origin, r.Host) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ip := peerIP(conn.RemoteAddr())
	cfg := s.getConfig()
	if cfg.limitByIP > 0 && s.registry.countByIP(ip) >= cfg.limitByIP {
		s.log.Warn().Err(ErrTooManyConnections).Str("ip", ip).Msg("rejected connection")
		writeHijackedStatus(rw, http.StatusTooManyRequests)
		conn.Close()
		return
	}

	id := s.assignIdentity(r, cfg.sessionExpires)

	accept := computeAccept(key)
	if err := writeHandshakeResponse(rw, accept, id, cfg.sessionExpires); err != nil {
		conn.Close()
		return
	}

	_ = conn.SetReadDeadline(time.Time{})

	transport := &countingTransport{Transport: conn}
	c := &ClientRecord{
		id:        id,
		transport: transport,
		peerIP:    ip,
		url:       r.URL,
		topic:     topicForPath(r.URL.Path),
		encoding:  cfg.encoding,
	}

	s.registry.add(c)
	s.registry.rememberSession(id, time.Now().Add(cfg.sessionExpires))
	s.emitter.emitOpen(id)
	s.log.Debug().Str("client", id).Str("path", r.URL.Path).Msg("connection opened")

	go s.serve(c)
}

func computeAccept(key string) string {
	sum := sha1.Sum([]byte(key + wsGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// originAllowed implements spec section 4.6 step 4, tightened per section 9:
// reject when Origin is missing or violates policy. Accept iff Origin
// contains Host, or allowOrigin contains "*", or allowOrigin contains the
// exact Origin.
func (s *Server) originAllowed(origin, host string) bool {
	if origin == "" {
		return false
	}
	cfg := s.getConfig()
	if strings.Contains(origin, host) {
		return true
	}
	for _, allowed := range cfg.allowOrigin {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// assignIdentity implements the sticky-session rule of spec section 4.5:
// reuse a cookie-supplied id when it was issued before, its window has not
// elapsed, and it is not bound to a live connection; otherwise allocate a
// fresh id.
func (s *Server) assignIdentity(r *http.Request, sessionExpires time.Duration) string {
	if sessionExpires > 0 {
		if cookie := parseSessionCookie(r.Header.Get("Cookie")); cookie != "" {
			if id, ok := s.registry.resolveSession(cookie, time.Now()); ok {
				return id
			}
		}
	}
	return s.registry.nextID()
}

func writeHandshakeResponse(rw *bufio.ReadWriter, accept, id string, sessionExpires time.Duration) error {
	expires := time.Now().Add(sessionExpires).UTC().Format(http.TimeFormat)

	_, _ = rw.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	_, _ = rw.WriteString("Upgrade: WebSocket\r\n")
	_, _ = rw.WriteString("Connection: Upgrade\r\n")
	_, _ = rw.WriteString(fmt.Sprintf("Sec-WebSocket-Accept: %s\r\n", accept))
	_, _ = rw.WriteString(fmt.Sprintf("Set-Cookie: %s=%s; Expires=%s\r\n\r\n", cookieName, id, expires))
	return rw.Flush()
}

func writeHijackedStatus(rw *bufio.ReadWriter, status int) {
	_, _ = rw.WriteString(fmt.Sprintf("HTTP/1.1 %d %s\r\n\r\n", status, http.StatusText(status)))
	_ = rw.Flush()
}
