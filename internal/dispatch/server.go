package dispatch

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// maxFrameLen bounds a single request body so a hostile or broken peer
// cannot force an unbounded allocation from the length prefix.
const maxFrameLen = 16 << 20

// Server is a minimal length-prefixed TCP front end over a Router: each
// request and response is a 4-byte big-endian length followed by that many
// bytes (spec.md §6: "lengths are framed by the transport (not specified
// here)"). One goroutine per connection; requests on a connection are
// handled one at a time, matching the request/response framing spec.md
// describes.
type Server struct {
	router   *Router
	log      *zap.Logger
	listener net.Listener
}

// NewServer constructs a Server. log may be nil, in which case nothing is
// logged.
func NewServer(router *Router, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{router: router, log: log}
}

// Serve accepts connections on addr until the listener is closed (typically
// via Close from another goroutine reacting to a shutdown signal).
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = lis
	s.log.Info("listening", zap.String("addr", addr))

	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections. Connections already accepted are
// not closed; each keeps being served until its peer disconnects.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	for {
		body, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug("read frame", zap.String("peer", remote), zap.Error(err))
			}
			return
		}

		resp, opErr := s.handleOne(body, remote)
		if writeErr := writeFrame(conn, resp); writeErr != nil {
			s.log.Debug("write frame", zap.String("peer", remote), zap.Error(writeErr))
			return
		}
		_ = opErr
	}
}

// handleOne wraps one Dispatch call with panic recovery and structured
// logging, mirroring the teacher's gRPC RecoverUnary/LoggingUnary pair: no
// request or response payload is ever logged, only operation metadata.
func (s *Server) handleOne(body []byte, remote string) (response []byte, opErr error) {
	start := time.Now()
	var action byte
	if len(body) > 0 {
		action = body[0]
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
				zap.Uint8("action", action),
				zap.String("peer", remote),
			)
			response = []byte{statusError}
			opErr = errors.New("internal")
		}
		s.log.Info("request",
			zap.Uint8("action", action),
			zap.String("kind", classify(opErr)),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		)
	}()

	response, opErr = s.router.Handle(body)
	return response, opErr
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, errors.New("dispatch: frame exceeds maximum length")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
