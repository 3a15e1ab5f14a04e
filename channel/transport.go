package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"

	wharf "github.com/wharfterm/wharf"
)

// maxEventBytes bounds a single inbound event line (command output can be
// large).
const maxEventBytes = 4 * 1024 * 1024

// lineConn speaks newline-delimited JSON envelopes over a net.Conn.
type lineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner

	wmu sync.Mutex
}

// NewLineConn wraps a stream connection in the envelope codec: one
// JSON-encoded envelope per line.
func NewLineConn(conn net.Conn) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxEventBytes)
	return &lineConn{conn: conn, scanner: scanner}
}

// Dial returns a Dialer for the given network address ("unix" socket path
// or "tcp" host:port).
func Dial(network, addr string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return NewLineConn(conn), nil
	}
}

func (c *lineConn) Send(env *wharf.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *lineConn) Recv() (*wharf.Envelope, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, net.ErrClosed
	}

	var env wharf.Envelope
	if err := json.Unmarshal(c.scanner.Bytes(), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}
