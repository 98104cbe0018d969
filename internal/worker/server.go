// Package worker hosts the decode side of the wire protocol. The scan
// library normally runs it as a child process ("qrscan worker") and
// talks to it over a loopback websocket, but it can also be deployed as
// a standalone decode service.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qrscan-dev/qrscan/internal/decode"
	"github.com/qrscan-dev/qrscan/internal/wire"
)

const shutdownGrace = 5 * time.Second

// maxDim bounds decode payload dimensions. Checking it before the pixel
// arithmetic keeps absurd width/height values from overflowing the size
// computation.
const maxDim = 1 << 16

// maxMessageBytes bounds a single channel message. Large enough for a
// full-resolution RGBA raster in its JSON encoding.
const maxMessageBytes = 256 << 20

// Server serves the worker message protocol.
type Server struct {
	decoder  *decode.Decoder
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	quit       chan struct{}
	quitOnce   sync.Once
}

// New returns an unstarted worker server.
func New() *Server {
	s := &Server{
		decoder: decode.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.channelHandler)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Listen binds the server. Pass "127.0.0.1:0" to pick a free loopback
// port; the returned address is the one actually bound.
func (s *Server) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("worker listen on %s: %w", addr, err)
	}
	s.listener = ln
	return ln.Addr().String(), nil
}

// URL returns the websocket URL clients dial. Only valid after Listen.
func (s *Server) URL() string {
	return "ws://" + s.listener.Addr().String() + "/"
}

// Run announces the bound websocket URL as a single line on ready and
// serves until a close message or a server failure. The address line is
// the child-process handshake: the parent reads it to know where to dial.
func (s *Server) Run(ready io.Writer) error {
	if s.listener == nil {
		if _, err := s.Listen("127.0.0.1:0"); err != nil {
			return err
		}
	}
	if ready != nil {
		if _, err := fmt.Fprintln(ready, s.URL()); err != nil {
			return fmt.Errorf("worker announce address: %w", err)
		}
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-s.quit:
		slog.Info("Worker received close, shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
		return nil
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown stops the server without waiting for a close message.
func (s *Server) Shutdown(ctx context.Context) error {
	s.signalQuit()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) signalQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *Server) channelHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Worker connection upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMessageBytes)

	slog.Debug("Worker channel established", "remote_addr", r.RemoteAddr)
	var writeMu sync.Mutex

	for {
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("Worker channel read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case wire.TypeDecode:
			// Decode concurrently so one slow raster never blocks the
			// channel; replies are matched by id, not arrival order.
			go s.handleDecode(conn, &writeMu, msg)
		case wire.TypeInversionMode:
			s.handleInversionMode(msg)
		case wire.TypeClose:
			s.signalQuit()
			return
		default:
			slog.Warn("Unknown worker message type", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (s *Server) handleDecode(conn *websocket.Conn, writeMu *sync.Mutex, msg wire.Message) {
	reply := wire.Reply{ID: msg.ID}

	var payload wire.DecodePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		slog.Warn("Malformed decode payload", "id", msg.ID, "error", err)
		decodesTotal.WithLabelValues("malformed").Inc()
	} else if payload.Width <= 0 || payload.Height <= 0 ||
		payload.Width > maxDim || payload.Height > maxDim ||
		len(payload.Pix) < 4*payload.Width*payload.Height {
		slog.Warn("Decode payload dimensions do not match pixel data",
			"id", msg.ID, "width", payload.Width, "height", payload.Height, "pix", len(payload.Pix))
		decodesTotal.WithLabelValues("malformed").Inc()
	} else {
		start := time.Now()
		if text, ok := s.decoder.Decode(payload.Image()); ok {
			reply.Data = &text
			decodesTotal.WithLabelValues("ok").Inc()
		} else {
			decodesTotal.WithLabelValues("not_found").Inc()
		}
		decodeDuration.Observe(time.Since(start).Seconds())
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(reply); err != nil {
		slog.Error("Worker reply write failed", "id", msg.ID, "error", err)
	}
}

func (s *Server) handleInversionMode(msg wire.Message) {
	var mode string
	if err := json.Unmarshal(msg.Data, &mode); err != nil {
		slog.Warn("Malformed inversionMode payload", "id", msg.ID, "error", err)
		return
	}
	s.decoder.SetInversionMode(mode)
	slog.Debug("Inversion mode updated", "mode", s.decoder.InversionMode())
}
