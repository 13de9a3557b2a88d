package rpc

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
)

// defaultPoolSize bounds how many TCP connections a Client keeps open.
const defaultPoolSize = 4

// clientConn pairs one pooled connection with its JSON codec state.
type clientConn struct {
	net.Conn
	enc *json.Encoder
	dec *json.Decoder
}

// Client is a JSON-over-TCP RPC client backed by a small connection pool.
// Concurrent calls each borrow their own connection, so requests proceed
// in parallel up to the pool size instead of serialising on one socket.
type Client struct {
	addr   string
	idle   chan *clientConn // connections ready for reuse
	slots  chan struct{}    // remaining dial capacity
	nextID atomic.Int64
	closed atomic.Bool
}

// Dial returns a Client for the RPC server at addr. The first connection
// is established eagerly so address errors surface immediately; the rest
// are dialed on demand as concurrent calls need them.
func Dial(addr string) (*Client, error) {
	c := &Client{
		addr:  addr,
		idle:  make(chan *clientConn, defaultPoolSize),
		slots: make(chan struct{}, defaultPoolSize),
	}
	for i := 0; i < defaultPoolSize; i++ {
		c.slots <- struct{}{}
	}
	<-c.slots
	cc, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.idle <- cc
	return c, nil
}

func (c *Client) dial() (*clientConn, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	return &clientConn{
		Conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// borrow hands out an idle connection, dialing a fresh one while the pool
// is below capacity. It blocks when every connection is in use.
func (c *Client) borrow() (*clientConn, error) {
	select {
	case cc := <-c.idle:
		return cc, nil
	default:
	}
	select {
	case cc := <-c.idle:
		return cc, nil
	case <-c.slots:
		cc, err := c.dial()
		if err != nil {
			c.slots <- struct{}{}
			return nil, err
		}
		return cc, nil
	}
}

// release returns a healthy connection to the pool.
func (c *Client) release(cc *clientConn) {
	if c.closed.Load() {
		cc.Close()
		return
	}
	c.idle <- cc
}

// discard drops a connection after a transport error and frees its slot so
// a later call can dial a replacement.
func (c *Client) discard(cc *clientConn) {
	cc.Close()
	c.slots <- struct{}{}
}

// Call invokes the named RPC method with params and decodes the response
// into result. Call is safe for concurrent use; parallel calls ride
// separate pooled connections.
func (c *Client) Call(method string, params any, result any) error {
	if c.closed.Load() {
		return fmt.Errorf("rpc client is closed")
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	req := Request{
		Method: method,
		ID:     strconv.FormatInt(c.nextID.Add(1), 10),
		Params: raw,
	}

	cc, err := c.borrow()
	if err != nil {
		return err
	}

	if err := cc.enc.Encode(req); err != nil {
		c.discard(cc)
		return fmt.Errorf("sending request: %w", err)
	}
	var resp Response
	if err := cc.dec.Decode(&resp); err != nil {
		c.discard(cc)
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.ID != req.ID {
		// The connection is out of sync with the server. Do not reuse it.
		c.discard(cc)
		return fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	c.release(cc)

	if resp.Error != "" {
		return fmt.Errorf("rpc error: %s", resp.Error)
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("marshaling response data: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshaling into result: %w", err)
	}
	return nil
}

// Close closes every pooled connection. Calls in flight finish on their
// borrowed connections, which close on return.
func (c *Client) Close() error {
	c.closed.Store(true)
	for {
		select {
		case cc := <-c.idle:
			cc.Close()
		default:
			return nil
		}
	}
}
