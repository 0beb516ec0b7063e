package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/session"
)

type Server struct {
	sess *session.Session
	log  *log.Logger

	idle     time.Duration
	upgrader websocket.Upgrader
}

// NewServer serves sess over websocket. idle bounds how long a connection may
// stay silent; zero means no limit.
func NewServer(sess *session.Session, idle time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		sess: sess,
		log:  logger,
		idle: idle,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			if s.idle > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(s.idle))
			}
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			op, code := decodeOp(msg)
			if code != "" {
				s.reject(out, op, code)
				continue
			}
			select {
			case s.sess.Inbox() <- session.OpEnvelope{ClientID: clientID, Op: op}:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.sess.Leave() <- clientID
	}
}

// decodeOp parses one client frame. A non-empty code means the frame is
// rejected before it reaches the session.
func decodeOp(msg []byte) (protocol.OpMsg, string) {
	var op protocol.OpMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeOp {
		return op, protocol.ErrProtoBadRequest
	}
	if err := json.Unmarshal(msg, &op); err != nil {
		return op, protocol.ErrProtoBadRequest
	}
	if op.ProtocolVersion != protocol.Version {
		return op, protocol.ErrProtoBadRequest
	}
	if !protocol.IsKnownOp(op.Op) {
		return op, protocol.ErrBadRequest
	}
	return op, ""
}

func (s *Server) reject(out chan []byte, op protocol.OpMsg, code string) {
	b, _ := json.Marshal(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           op.ReqID,
		Op:              op.Op,
		OK:              false,
		Code:            code,
		Message:         "rejected",
	})
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	name := strings.TrimSpace(hello.ClientName)
	if name == "" {
		name = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan session.JoinResponse, 1)
	s.sess.Join() <- session.JoinRequest{Name: name, Out: out, Resp: respCh}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.sess.Leave() <- resp.Welcome.SessionID
		return "", nil
	}
	_ = conn.SetReadDeadline(time.Time{})
	return resp.Welcome.SessionID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
