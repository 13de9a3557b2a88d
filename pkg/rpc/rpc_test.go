package rpc

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := NewServer()
	s.Register("Test.Echo", func(ctx context.Context, req json.RawMessage) (any, error) {
		var in echoRequest
		if err := json.Unmarshal(req, &in); err != nil {
			return nil, err
		}
		return &echoResponse{Message: in.Message, Count: len(in.Message)}, nil
	})
	s.Register("Test.Panic", func(ctx context.Context, req json.RawMessage) (any, error) {
		panic("boom")
	})

	go s.Serve(addr)
	t.Cleanup(s.Stop)

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return s, addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not start on %s", addr)
	return nil, ""
}

func TestCallRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var resp echoResponse
	if err := c.Call("Test.Echo", &echoRequest{Message: "hello"}, &resp); err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Message != "hello" || resp.Count != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var resp echoResponse
	err = c.Call("Test.Missing", &echoRequest{Message: "x"}, &resp)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestMethodCount(t *testing.T) {
	s := NewServer()
	if s.MethodCount() != 0 {
		t.Fatalf("new server should have no methods, got %d", s.MethodCount())
	}
	s.Register("A.B", func(ctx context.Context, req json.RawMessage) (any, error) { return nil, nil })
	s.Register("A.C", func(ctx context.Context, req json.RawMessage) (any, error) { return nil, nil })
	if s.MethodCount() != 2 {
		t.Fatalf("want 2 methods, got %d", s.MethodCount())
	}
}

func TestSequentialCallsShareConnection(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	for _, msg := range []string{"a", "bb", "ccc"} {
		var resp echoResponse
		if err := c.Call("Test.Echo", &echoRequest{Message: msg}, &resp); err != nil {
			t.Fatalf("call %q: %v", msg, err)
		}
		if resp.Count != len(msg) {
			t.Fatalf("call %q: want count %d, got %d", msg, len(msg), resp.Count)
		}
	}
}

func TestConcurrentCallsDrawFromPool(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4*defaultPoolSize; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			msg := strings.Repeat("x", n%5+1)
			var resp echoResponse
			if err := c.Call("Test.Echo", &echoRequest{Message: msg}, &resp); err != nil {
				t.Errorf("call %d: %v", n, err)
				return
			}
			if resp.Count != len(msg) {
				t.Errorf("call %d: want count %d, got %d", n, len(msg), resp.Count)
			}
		}(i)
	}
	wg.Wait()
}

func TestHandlerPanicKeepsConnectionAlive(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	err = c.Call("Test.Panic", nil, nil)
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if !strings.Contains(err.Error(), "internal error") {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp echoResponse
	if err := c.Call("Test.Echo", &echoRequest{Message: "still up"}, &resp); err != nil {
		t.Fatalf("call after panic: %v", err)
	}
	if resp.Count != len("still up") {
		t.Fatalf("want count %d, got %d", len("still up"), resp.Count)
	}
}
