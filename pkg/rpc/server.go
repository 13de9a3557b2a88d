// Package rpc implements the JSON-over-TCP protocol searchd exposes for
// programmatic batch access. Frames are newline-delimited JSON on a
// persistent connection: a Request names a method and carries a
// client-chosen ID, the server answers with a Response bearing the same
// ID. One request is in flight per connection at a time; the Client side
// keeps a small pool of connections for concurrency.
//
// Example server:
//
//	s := rpc.NewServer()
//	s.Register("Engine.BatchScore", func(ctx context.Context, req json.RawMessage) (any, error) {
//	    var batchReq search.BatchScoreRequest
//	    json.Unmarshal(req, &batchReq)
//	    // ... score queries ...
//	    return &search.BatchScoreResponse{...}, nil
//	})
//	s.Serve(":7700")
//
// Example client:
//
//	c, _ := rpc.Dial("localhost:7700")
//	var resp search.BatchScoreResponse
//	c.Call("Engine.BatchScore", &search.BatchScoreRequest{Queries: []string{"hello"}}, &resp)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/proplex/searchd/pkg/logger"
)

// HandlerFunc serves one method. The raw params are handed over undecoded
// so each handler picks its own request type.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request and Response are the wire frames. The server echoes the
// request ID back unchanged, which is how a client detects a
// desynchronized connection.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server. Handlers run with a
// context that is cancelled when the server stops, so blocking work in a
// handler unwinds during shutdown.
type Server struct {
	handlers map[string]HandlerFunc
	listener net.Listener
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.WithComponent("rpc-server"),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Register binds a method name, conventionally "Service.Method", to a
// handler. Registering the same name again replaces the handler.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("registered", "method", method)
}

// Serve listens on addr and accepts connections until Stop is called,
// which makes it return nil.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("accepting connections", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.baseCtx.Err() != nil {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection dropped", "reason", err)
			}
			return
		}
		if err := enc.Encode(s.dispatch(req)); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

// dispatch runs the handler for a single request. A panicking handler is
// converted into an error response so one bad request cannot take the
// whole connection down.
func (s *Server) dispatch(req Request) (resp Response) {
	resp.ID = req.ID

	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()
	if !exists {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "method", req.Method, "panic", r)
			resp.Data = nil
			resp.Error = fmt.Sprintf("internal error in %s", req.Method)
		}
	}()

	start := time.Now()
	data, err := handler(s.baseCtx, req.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Data = data
	s.logger.Debug("request served",
		"method", req.Method,
		"latency_ms", float64(time.Since(start).Microseconds())/1000,
	)
	return resp
}

// MethodCount reports how many methods are registered, for startup logs
// and tests.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop cancels in-flight handlers, closes the listener, and waits for
// open connections to drain.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	s.logger.Info("stopped")
}
