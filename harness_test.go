package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akirc/akirc/irc"
	log "github.com/sirupsen/logrus"
)

// harnessServer brings up a server on a loopback port chosen by the
// kernel and returns it along with the address to dial.
func harnessServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()

	cfg.ListenHost = "127.0.0.1"
	cfg.ListenPort = "0"

	s := newServer(cfg)
	if err := s.listen(); err != nil {
		t.Fatalf("error listening: %s", err)
	}
	go s.serve()

	t.Cleanup(s.stop)

	return s, s.listener.Addr().String()
}

// testClient is a minimal IRC client for driving the server over a real
// TCP connection.
type testClient struct {
	nick string
	addr string

	writeTimeout time.Duration
	readTimeout  time.Duration

	conn net.Conn
	rw   *bufio.ReadWriter

	recvChan chan irc.Message
	sendChan chan irc.Message
	errChan  chan error
	doneChan chan struct{}
	wg       *sync.WaitGroup
}

func newTestClient(nick, addr string) *testClient {
	return &testClient{
		nick: nick,
		addr: addr,

		writeTimeout: 30 * time.Second,
		readTimeout:  100 * time.Millisecond,
	}
}

// start connects and sends the registration handshake. Every message
// received from the server goes out on the receive channel; messages
// sent to the send channel go to the server. The caller must call stop
// to clean up.
func (c *testClient) start() (
	<-chan irc.Message,
	chan<- irc.Message,
	<-chan error,
	error,
) {
	recvChan, sendChan, errChan, err := c.startRaw()
	if err != nil {
		return nil, nil, nil, err
	}

	sendChan <- irc.Message{Command: "NICK", Params: []string{c.nick}}
	sendChan <- irc.Message{Command: "USER",
		Params: []string{c.nick, "0", "*", c.nick}}

	return recvChan, sendChan, errChan, nil
}

// startRaw connects without registering, for exercising how the server
// treats a connection mid handshake.
func (c *testClient) startRaw() (
	<-chan irc.Message,
	chan<- irc.Message,
	<-chan error,
	error,
) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error dialing: %s", err)
	}

	c.conn = conn
	c.rw = bufio.NewReadWriter(bufio.NewReader(c.conn), bufio.NewWriter(c.conn))

	c.recvChan = make(chan irc.Message, 512)
	c.sendChan = make(chan irc.Message, 512)
	c.errChan = make(chan error, 512)
	c.doneChan = make(chan struct{})

	c.wg = &sync.WaitGroup{}

	c.wg.Add(1)
	go c.reader(c.recvChan)

	c.wg.Add(1)
	go c.writer(c.sendChan)

	return c.recvChan, c.sendChan, c.errChan, nil
}

func (c testClient) reader(recvChan chan<- irc.Message) {
	defer c.wg.Done()

	for {
		select {
		case <-c.doneChan:
			close(recvChan)
			return
		default:
		}

		m, err := c.readMessage()
		if err != nil {
			// A short read timeout lets us check doneChan often. There is
			// no exported error value to compare against.
			if strings.Contains(err.Error(), "i/o timeout") {
				continue
			}

			c.errChan <- fmt.Errorf("error reading message: %s", err)
			close(recvChan)
			return
		}

		recvChan <- m
	}
}

func (c testClient) writer(sendChan <-chan irc.Message) {
	defer c.wg.Done()

	for {
		select {
		case <-c.doneChan:
			return
		case m, ok := <-sendChan:
			if !ok {
				return
			}
			if err := c.writeMessage(m); err != nil {
				c.errChan <- fmt.Errorf("error writing message: %s", err)
				return
			}
		}
	}
}

func (c testClient) writeMessage(m irc.Message) error {
	buf, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		return fmt.Errorf("unable to encode message: %s", err)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("unable to set deadline: %s", err)
	}

	sz, err := c.rw.WriteString(buf)
	if err != nil {
		return err
	}
	if sz != len(buf) {
		return fmt.Errorf("short write")
	}

	if err := c.rw.Flush(); err != nil {
		return fmt.Errorf("flush error: %s", err)
	}

	log.Debugf("client %s: sent: %s", c.nick, strings.TrimRight(buf, "\r\n"))
	return nil
}

func (c testClient) readMessage() (irc.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return irc.Message{}, fmt.Errorf("unable to set deadline: %s", err)
	}

	line, err := c.rw.ReadString('\n')
	if err != nil {
		return irc.Message{}, err
	}

	log.Debugf("client %s: read: %s", c.nick, strings.TrimRight(line, "\r\n"))

	m, err := irc.ParseMessage(line)
	if err != nil && err != irc.ErrTruncated {
		return irc.Message{}, fmt.Errorf("unable to parse message: %s: %s", line,
			err)
	}

	return m, nil
}

// sendRaw writes bytes to the connection as they are, bypassing the
// encoder. The caller must be sure the writer goroutine is idle.
func (c *testClient) sendRaw(s string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if _, err := c.rw.WriteString(s); err != nil {
		return err
	}
	return c.rw.Flush()
}

// closeAbruptly drops the TCP connection without saying goodbye.
func (c *testClient) closeAbruptly() {
	_ = c.conn.Close()
}

// stop shuts down the client and cleans up. Nothing may be sent on the
// send channel after calling it.
func (c *testClient) stop() {
	close(c.doneChan)
	close(c.sendChan)
	c.wg.Wait()
	close(c.errChan)
	_ = c.conn.Close()

	for range c.recvChan {
	}
	for range c.errChan {
	}
}

// registerClient starts the client and consumes the welcome burst
// through its end. It returns the client's channels and the fully
// qualified name the server assigned, read out of the welcome text.
func registerClient(t *testing.T, c *testClient) (
	<-chan irc.Message,
	chan<- irc.Message,
	string,
) {
	t.Helper()

	recvChan, sendChan, _, err := c.start()
	if err != nil {
		t.Fatalf("error starting client %s: %s", c.nick, err)
	}

	welcome := waitForMessage(t, recvChan,
		irc.Message{Command: irc.ReplyWelcome}, "welcome to %s", c.nick)
	fqn := strings.TrimPrefix(welcome.Params[1],
		"Welcome to the Internet Relay Network ")

	// The burst ends with the MOTD, or with word that there is none.
	for {
		m := nextMessage(t, recvChan)
		if m.Command == irc.ReplyEndOfMotd || m.Command == irc.ErrorNoMotd {
			return recvChan, sendChan, fqn
		}
	}
}

// waitForMessage waits until a message with the wanted command arrives,
// discarding anything else that shows up first.
func waitForMessage(
	t *testing.T,
	ch <-chan irc.Message,
	want irc.Message,
	format string,
	a ...interface{},
) *irc.Message {
	t.Helper()

	for {
		select {
		case <-time.After(10 * time.Second):
			t.Fatalf("timeout waiting for message %s: %s", want,
				fmt.Sprintf(format, a...))
			return nil
		case got, ok := <-ch:
			if !ok {
				t.Fatalf("connection closed waiting for message %s: %s", want,
					fmt.Sprintf(format, a...))
				return nil
			}
			if got.Command == want.Command {
				return &got
			}
		}
	}
}

// nextMessage returns the next message the server sends, whatever it is.
func nextMessage(t *testing.T, ch <-chan irc.Message) *irc.Message {
	t.Helper()

	select {
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout waiting for a message")
		return nil
	case got, ok := <-ch:
		if !ok {
			t.Fatalf("connection closed waiting for a message")
			return nil
		}
		return &got
	}
}

func messageIsEqual(t *testing.T, got, wanted *irc.Message) {
	t.Helper()

	if got == nil {
		t.Fatalf("received nil message")
	}

	if got.Prefix != wanted.Prefix {
		t.Fatalf("message prefix = %s, wanted %s (message: %s)", got.Prefix,
			wanted.Prefix, got)
	}

	if got.Command != wanted.Command {
		t.Fatalf("message command = %s, wanted %s (message: %s)", got.Command,
			wanted.Command, got)
	}

	if len(got.Params) != len(wanted.Params) {
		t.Fatalf("message number of params = %d, wanted %d (message: %s)",
			len(got.Params), len(wanted.Params), got)
	}

	for i := range wanted.Params {
		if got.Params[i] != wanted.Params[i] {
			t.Fatalf("param %d = %s, wanted %s (message: %s)", i, got.Params[i],
				wanted.Params[i], got)
		}
	}
}

// assertSilence sends a PING probe and fails on anything arriving
// before the PONG. The server handles one connection's commands in
// order, so once the PONG is here, anything it meant to send this
// client would have arrived already.
func assertSilence(
	t *testing.T,
	recvChan <-chan irc.Message,
	sendChan chan<- irc.Message,
) {
	t.Helper()

	sendChan <- irc.Message{Command: "PING", Params: []string{"probe"}}

	m := nextMessage(t, recvChan)
	if m.Command != "PONG" {
		t.Fatalf("unexpected message: %s", m)
	}
}

// waitForUserGone polls the registry until nick is no longer present.
func waitForUserGone(t *testing.T, s *Server, nick string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		reg := s.registry.Lock()
		_, ok := reg.GetUser(nick)
		reg.Unlock()

		if !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("user %s is still registered", nick)
}
