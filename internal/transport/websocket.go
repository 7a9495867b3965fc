// nmq+ws:// listener: upgrades HTTP connections to a websocket carrying
// the MQTT binary sub-protocol, then wraps each one as a net.Conn so it
// drives the identical TCPServer.handleConnection loop used by
// broker+tcp://.
package transport

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nanomq-go/nanomq/internal/auth"
	"github.com/nanomq-go/nanomq/internal/broker"
	"github.com/nanomq-go/nanomq/internal/logger"
)

// WSServer accepts nmq+ws:// connections, upgrading each HTTP request on
// path to a websocket before handing it to the same work-item loop
// TCPServer uses.
type WSServer struct {
	addr string
	path string

	tcp    *TCPServer
	server *http.Server
	log    *logger.Logger

	upgrader websocket.Upgrader
}

// NewWS constructs a WSServer bound to addr, upgrading requests at path
// (default "/mqtt" if empty) and sharing b/authStore/reg with any TCP
// listener on the same broker.
func NewWS(addr, path string, b *broker.Broker, authStore *auth.Store, reg *Registry) *WSServer {
	if path == "" {
		path = "/mqtt"
	}
	return &WSServer{
		addr: addr,
		path: path,
		tcp:  New(addr, b, authStore, reg),
		log:  logger.NewMQTTLogger("transport.ws"),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"mqtt"},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
	}
}

// Start listens on addr and accepts upgraded websocket connections until
// ctx is done.
func (s *WSServer) Start(ctx context.Context) error {
	addr := s.addr
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[:i]
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	wsLn := newWSListener(ln, s.path, s.upgrader)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, wsLn.handleUpgrade)
	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(wsLn.httpListener); err != nil && err != http.ErrServerClosed {
			s.log.LogError("serve", err)
		}
	}()

	s.log.Info("listening", "addr", s.addr, "path", s.path)
	return s.tcp.Serve(ctx, wsLn)
}

// Stop closes the HTTP server and the listener. Upgraded connections are
// not closed here; they are closed via the shared Registry's CloseAll.
func (s *WSServer) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
	s.tcp.Stop()
}

// wsListener adapts an http.Server upgrading connections on one path into
// a net.Listener.
type wsListener struct {
	httpListener net.Listener
	path         string
	upgrader     websocket.Upgrader

	connCh    chan net.Conn
	errCh     chan error
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newWSListener(ln net.Listener, path string, upgrader websocket.Upgrader) *wsListener {
	return &wsListener{
		httpListener: ln,
		path:         path,
		upgrader:     upgrader,
		connCh:       make(chan net.Conn, 64),
		errCh:        make(chan error, 1),
		closeCh:      make(chan struct{}),
	}
}

func (l *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{ws: ws}
	select {
	case l.connCh <- conn:
	case <-l.closeCh:
		_ = conn.Close()
	}
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case err := <-l.errCh:
		return nil, err
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		_ = l.httpListener.Close()
	})
	return nil
}

func (l *wsListener) Addr() net.Addr { return l.httpListener.Addr() }

// wsConn wraps a websocket connection to present net.Conn's byte-stream
// semantics to readPacket, buffering the remainder of any websocket frame
// that didn't fully fit the caller's buffer.
type wsConn struct {
	ws      *websocket.Conn
	reader  *wsReader
	writeMu sync.Mutex
}

type wsReader struct {
	data []byte
	pos  int
}

func (c *wsConn) Read(b []byte) (int, error) {
	if c.reader != nil && c.reader.pos < len(c.reader.data) {
		n := copy(b, c.reader.data[c.reader.pos:])
		c.reader.pos += n
		if c.reader.pos >= len(c.reader.data) {
			c.reader = nil
		}
		return n, nil
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, err
	}
	n := copy(b, data)
	if n < len(data) {
		c.reader = &wsReader{data: data, pos: n}
	}
	return n, nil
}

func (c *wsConn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error                       { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr                { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr               { return c.ws.RemoteAddr() }
func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

var _ net.Conn = (*wsConn)(nil)
