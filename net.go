package main

import (
	"bufio"
	"net"

	"github.com/akirc/akirc/irc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Conn is a connection to a client.
type Conn struct {
	conn net.Conn
	rw   *bufio.ReadWriter
	IP   net.IP
}

// NewConn initializes a Conn struct.
func NewConn(conn net.Conn) Conn {
	tcpAddr, err := net.ResolveTCPAddr("tcp", conn.RemoteAddr().String())
	// This shouldn't happen. We only accept TCP connections.
	if err != nil {
		log.Fatalf("Unable to resolve TCP address: %s", err)
	}

	return Conn{
		conn: conn,
		rw:   bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		IP:   tcpAddr.IP,
	}
}

// Close closes the underlying connection.
func (c Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address.
func (c Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadLine reads one line from the connection. A line ends at the first CR
// or LF. Empty lines (including the second half of a CRLF pair) are
// silently skipped. The terminator is not included in the returned line.
func (c Conn) ReadLine() (string, error) {
	var line []byte
	for {
		b, err := c.rw.ReadByte()
		if err != nil {
			return "", errors.Wrap(err, "error reading")
		}

		if b == '\r' || b == '\n' {
			if len(line) == 0 {
				continue
			}
			return string(line), nil
		}

		line = append(line, b)
	}
}

// WriteMessage writes an IRC message to the connection.
func (c Conn) WriteMessage(m irc.Message) error {
	buf, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		return errors.WithMessagef(err, "unable to encode message: %s", buf)
	}

	return c.Write(buf)
}

// Write writes a string to the connection.
func (c Conn) Write(s string) error {
	sz, err := c.rw.WriteString(s)
	if err != nil {
		return errors.Wrap(err, "error writing")
	}

	if sz != len(s) {
		return errors.New("short write")
	}

	if err := c.rw.Flush(); err != nil {
		return errors.Wrap(err, "flush error")
	}

	return nil
}
