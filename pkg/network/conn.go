package network

import (
	"bufio"
	"net"
	"time"

	"go.uber.org/atomic"
)

// Traffic counts the bytes going through connections of a server.
type Traffic struct {
	Sent atomic.Uint64
	Recv atomic.Uint64
}

type conn struct {
	link    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	sent    uint64
	recv    uint64
	traffic *Traffic
}

// NewConn wraps the link in a buffered Connection. Bytes are added to traffic when the connection is closed.
func NewConn(link net.Conn, traffic *Traffic) Connection {
	return &conn{
		link:    link,
		reader:  bufio.NewReader(link),
		writer:  bufio.NewWriter(link),
		traffic: traffic,
	}
}

func (c *conn) Read(b []byte) (int, error) {
	n, err := c.reader.Read(b)
	c.recv += uint64(n)
	return n, err
}

func (c *conn) Write(b []byte) (int, error) {
	written, n := 0, 0
	var err error
	for written < len(b) {
		n, err = c.writer.Write(b[written:])
		written += n
		if err == bufio.ErrBufferFull {
			err = c.writer.Flush()
		}
		if err != nil {
			break
		}
	}
	c.sent += uint64(written)
	return written, err
}

func (c *conn) Flush() error {
	return c.writer.Flush()
}

func (c *conn) Close() error {
	if c.traffic != nil {
		c.traffic.Sent.Add(c.sent)
		c.traffic.Recv.Add(c.recv)
	}
	return c.link.Close()
}

func (c *conn) TimeoutAfter(t time.Duration) {
	c.link.SetDeadline(time.Now().Add(t))
}
