// Package transport implements the broker+tcp:// and nmq+ws:// listeners:
// framing, pipe/context allocation, and driving each connection's work
// item through broker.Step.
package transport

import (
	"context"
	"net"
	"strings"
	"sync/atomic"

	"github.com/nanomq-go/nanomq/internal/auth"
	"github.com/nanomq-go/nanomq/internal/broker"
	"github.com/nanomq-go/nanomq/internal/logger"
	"github.com/nanomq-go/nanomq/internal/packet"
)

// TCPServer accepts broker+tcp:// connections and drives each one's
// worker state machine.
type TCPServer struct {
	addr     string
	listener net.Listener

	broker    *broker.Broker
	authStore *auth.Store
	reg       *Registry
	log       *logger.Logger

	isShuttingDown atomic.Bool
}

// New constructs a TCPServer bound to addr, backed by b for broker logic,
// authStore for CONNECT-time credential checks, and reg for pipe-id
// allocation and delivery shared with any other listener on b.
func New(addr string, b *broker.Broker, authStore *auth.Store, reg *Registry) *TCPServer {
	return &TCPServer{
		addr:      addr,
		broker:    b,
		authStore: authStore,
		reg:       reg,
		log:       logger.NewMQTTLogger("transport.tcp"),
	}
}

// Start binds the listener and accepts connections until ctx is done.
func (s *TCPServer) Start(ctx context.Context) error {
	addr := s.addr
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("listening", "addr", s.addr)
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop over an already-established net.Listener,
// shared with WSServer so both listeners drive the identical per-pipe
// framing and work-item loop below.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.listener = ln

	go func() {
		<-ctx.Done()
		s.isShuttingDown.Store(true)
		_ = s.listener.Close()
	}()

	return s.accept(ctx)
}

// Stop closes the listener. Live connections are closed via the shared
// Registry's CloseAll at process shutdown.
func (s *TCPServer) Stop() {
	s.isShuttingDown.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *TCPServer) accept(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShuttingDown.Load() {
				return nil
			}
			s.log.LogError("accept", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection is the per-pipe read loop: it reads framed packets,
// feeds them to the bound work item's Step, and writes whatever Step
// returns back to the client, closing on DISCONNECT or a fatal decode
// error on the first (CONNECT) packet.
func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	pipeID := s.reg.allocate(conn)

	defer func() {
		s.reg.release(pipeID)
		_ = conn.Close()
	}()

	w := s.broker.NewWorkItem(pipeID, false)
	defer s.broker.ReleaseWorkItem(w)

	if _, err := s.broker.Step(w, nil); err != nil {
		return
	}

	if !s.handleConnect(ctx, conn, pipeID, w) {
		return
	}

	for {
		raw, err := readPacket(conn)
		if err != nil {
			s.broker.HandlePipeLoss(w)
			return
		}

		out, err := s.broker.Step(w, raw)
		if err != nil {
			s.log.LogError("step", err)
			continue
		}
		if w.IsDisconnect() {
			return
		}
		if out, err = s.broker.Step(w, nil); err != nil {
			s.log.LogError("step", err)
			continue
		}
		for _, pkt := range out {
			if _, err := conn.Write(pkt); err != nil {
				s.broker.HandlePipeLoss(w)
				return
			}
		}
		if len(out) > 0 {
			if _, err := s.broker.Step(w, nil); err != nil {
				return
			}
		}

		if w.IsDisconnect() {
			return
		}
	}
}

// handleConnect reads and authenticates the mandatory first CONNECT
// packet, sends CONNACK, and binds or restores the client's session.
// Returns false if the connection should be closed immediately after.
func (s *TCPServer) handleConnect(ctx context.Context, conn net.Conn, pipeID uint64, w *broker.WorkItem) bool {
	raw, err := readPacket(conn)
	if err != nil {
		return false
	}

	parsed, err := packet.Parse(raw)
	if err != nil || !parsed.IsConnect() {
		_, _ = conn.Write(packet.NewConnAck(false, packet.ConnackUnacceptableProtocol))
		return false
	}
	connect := parsed.GetConnect()

	if err := s.authStore.Authenticate(connect.Username, string(connect.Password)); err != nil {
		_, _ = conn.Write(packet.NewConnAck(false, packet.ConnackBadUsernameOrPassword))
		return false
	}

	cp := broker.NewConnParam(connect.ClientID, connect.WillFlag, connect.WillQoS, connect.WillRetain, connect.WillTopic, connect.WillMessage, connect.CleanStart, connect.KeepAlive, connect.ProtocolLevel, connect.Username, connect.Password)
	w.Bind(cp, connect.ClientID)

	_, sessionPresent := s.broker.BindSession(connect.ClientID, pipeID, connect.CleanStart)

	_, _ = conn.Write(packet.NewConnAck(sessionPresent, packet.ConnackAccepted))
	evt := s.broker.ComposeConnectEventFor(connect.ClientID, connectFlagsByte(connect), sessionPresent)
	s.broker.PublishSystemEvent(evt)
	return true
}

func connectFlagsByte(c *packet.ConnectPacket) byte {
	var flags byte
	if c.UsernameFlag {
		flags |= 0x80
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.WillRetain {
		flags |= 0x20
	}
	flags |= c.WillQoS << 3
	if c.WillFlag {
		flags |= 0x04
	}
	if c.CleanStart {
		flags |= 0x02
	}
	return flags
}

// readPacket reads one complete MQTT control packet (fixed header +
// variable-length remaining-length field + body) from conn.
func readPacket(conn net.Conn) ([]byte, error) {
	header := make([]byte, 1)
	if _, err := conn.Read(header); err != nil {
		return nil, err
	}

	var remLenBytes []byte
	var remLen, multiplier int
	multiplier = 1
	for {
		b := make([]byte, 1)
		if _, err := conn.Read(b); err != nil {
			return nil, err
		}
		remLenBytes = append(remLenBytes, b[0])
		remLen += int(b[0]&0x7F) * multiplier
		multiplier *= 128
		if b[0]&0x80 == 0 {
			break
		}
	}

	body := make([]byte, remLen)
	if remLen > 0 {
		if _, err := readFull(conn, body); err != nil {
			return nil, err
		}
	}

	raw := make([]byte, 0, 1+len(remLenBytes)+remLen)
	raw = append(raw, header[0])
	raw = append(raw, remLenBytes...)
	raw = append(raw, body...)
	return raw, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
