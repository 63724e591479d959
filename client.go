package main

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/akirc/akirc/irc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Client is a connection and the two goroutines serving it: a reader
// owned by run and a writer draining the user's outbound queue. The
// User it wraps starts out unregistered and is promoted in place once
// NICK and USER have both arrived.
type Client struct {
	// Conn holds the TCP connection to the client.
	Conn Conn

	// A unique id. Internal to this server only.
	ID uint64

	server *Server
	user   *User

	// Set once the QUIT handler has said goodbye. The read loop stops at
	// the next iteration.
	quitting bool

	log *log.Entry
}

func newClient(s *Server, id uint64, conn net.Conn) *Client {
	c := &Client{
		Conn:   NewConn(conn),
		ID:     id,
		server: s,
	}
	c.log = log.WithField("client", c.String())
	return c
}

func (c *Client) String() string {
	return fmt.Sprintf("%d %s", c.ID, c.Conn.RemoteAddr())
}

// run serves the connection from accept to teardown. It blocks until
// the peer goes away or QUIT is handled.
func (c *Client) run() {
	c.log.Info("New connection")

	// The hostname is fixed for the life of the connection, so look it up
	// before reading anything.
	hostname := lookupHostname(c.Conn.IP)
	c.user = newUser(hostname, c.server.config.ServerName)

	c.server.wg.Go(c.writeLoop)

	c.readLoop()
	c.teardown()
}

// readLoop endlessly reads from the client's TCP connection. It parses
// each IRC protocol message and handles it.
func (c *Client) readLoop() {
	for {
		line, err := c.Conn.ReadLine()
		if err != nil {
			if errors.Cause(err) == io.EOF {
				c.log.Info("Client disconnected")
			} else {
				c.log.Errorf("Read error: %s", err)
			}
			return
		}

		c.log.Debugf("Read: %s", line)

		m, err := irc.ParseMessage(line)
		// A truncated message is still usable.
		if err != nil && err != irc.ErrTruncated {
			c.log.Debugf("Dropping malformed line [%s]: %s", line, err)
			continue
		}

		c.handleMessage(m)

		if c.quitting {
			return
		}
	}
}

// writeLoop endlessly reads from the user's queue, encodes each
// message, and writes it to the client's TCP connection. It exits when
// the queue closes in teardown or the connection breaks, and it owns
// closing the socket either way. Closing the socket is also what
// unblocks the read loop when the peer is dead but still connected.
func (c *Client) writeLoop() {
	for m := range c.user.WriteChan {
		if err := c.Conn.WriteMessage(m); err != nil {
			c.log.Errorf("Write error: %s", err)
			break
		}
		c.log.Debugf("Sent: %s", m)
	}

	if err := c.Conn.Close(); err != nil {
		c.log.Debugf("Problem closing connection: %s", err)
	}
	c.log.Info("Writer shutting down")
}

// teardown takes the user out of all shared state and closes its
// outbound queue. Closing the queue is safe against concurrent
// senders: every send in this server happens under the registry lock,
// and once we hold it and the user is removed, no handler can reach
// this user again.
func (c *Client) teardown() {
	reg := c.server.registry.Lock()
	if c.user.isRegistered() {
		reg.RemoveUser(c.user)
	} else {
		reg.ReleaseUnregisteredNick(c.user.nick())
	}
	close(c.user.WriteChan)
	reg.Unlock()

	c.log.Info("Done serving client")
}

func (c *Client) handleMessage(m irc.Message) {
	cmd := irc.ParseCommand(m)

	if c.user.isRegistered() {
		c.handleCommand(cmd)
		return
	}
	c.handlePending(cmd)
}

// handlePending deals with a connection that has not registered yet.
// Only NICK and USER do anything here, though when those two are
// malformed they still draw their numerics. Everything else is
// dropped.
func (c *Client) handlePending(cmd irc.Command) {
	u := c.user

	reg := c.server.registry.Lock()

	switch cmd := cmd.(type) {
	case irc.Nick:
		if !reg.ClaimUnregisteredNick(u.nick(), cmd.Nickname) {
			u.reply(irc.ErrorNicknameInUse, cmd.Nickname,
				"Nickname is already in use")
			break
		}
		u.setNick(cmd.Nickname)

	case irc.User:
		u.setUsername(cmd.Username)
		u.setRealName(cmd.Realname)

	case irc.Invalid:
		if cmd.Name == "NICK" || cmd.Name == "USER" {
			replyInvalid(u, cmd)
			break
		}
		c.log.Debugf("Ignoring %s from unregistered client", cmd.Name)

	default:
		c.log.Debugf("Ignoring %T from unregistered client", cmd)
	}

	registered := false
	if u.readyToRegister() {
		reg.RegisterUser(u)
		c.welcome()
		registered = true
	}

	reg.Unlock()

	// The MOTD handler takes the registry lock itself, so it runs after
	// we let go of it.
	if registered {
		c.log.WithField("nick", u.nick()).Info("Client registered")
		c.motdCommand(irc.Motd{})
	}
}

// welcome sends the registration burst, 001 through 005. The MOTD
// follows, dispatched by our caller as if the client had asked for it.
func (c *Client) welcome() {
	u := c.user
	cfg := c.server.config

	// 001 RPL_WELCOME
	u.reply(irc.ReplyWelcome,
		"Welcome to the Internet Relay Network "+u.fqn())

	// 002 RPL_YOURHOST
	u.reply(irc.ReplyYourHost, fmt.Sprintf(
		"Your host is %s, running version %s", cfg.ServerName, serverVersion))

	// 003 RPL_CREATED
	u.reply(irc.ReplyCreated, fmt.Sprintf("This server was created %s",
		c.server.started.Format(time.RFC1123)))

	// 004 RPL_MYINFO
	// <servername> <version> <user modes> <channel modes> <channel modes
	// with parameters>
	u.reply(irc.ReplyMyInfo, cfg.ServerName, serverVersion, userModes,
		channelModes, channelModesWithParams)

	// 005 RPL_ISUPPORT
	u.reply(irc.ReplyISupport,
		"CHANMODES=,,,"+channelModes,
		"CHANTYPES=#&",
		"NETWORK="+networkName,
		fmt.Sprintf("NICKLEN=%d", irc.MaxNickLength),
		fmt.Sprintf("TOPICLEN=%d", irc.MaxTopicLength),
		fmt.Sprintf("USERLEN=%d", irc.MaxUsernameLength),
		"are supported by this server")
}
