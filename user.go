package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/akirc/akirc/irc"
	log "github.com/sirupsen/logrus"
)

// User holds a connection's identity and its outbound queue. It is
// created as soon as the connection is accepted; until registration
// completes it is not in the registry and its nickname (if any) lives in
// the registry's pending set.
//
// Cross-user mutations are serialized by the registry lock, taken before
// the per-user mutex.
type User struct {
	// WriteChan is the user's bounded outbound queue, drained by the
	// connection's writer goroutine.
	WriteChan chan irc.Message

	// serverName is the name replies carry as their prefix.
	serverName string

	mu sync.Mutex

	nickname   string
	username   string
	realname   string
	hostname   string
	registered bool

	modes    map[byte]struct{}
	channels map[*Channel]struct{}

	// Set once we dropped a message because the queue was full. The
	// connection is beyond saving at that point; the reader notices the
	// dead socket eventually.
	sendQueueExceeded bool
}

func newUser(hostname, serverName string) *User {
	return &User{
		WriteChan:  make(chan irc.Message, outboundQueueSize),
		serverName: serverName,
		hostname:   hostname,
		modes:      make(map[byte]struct{}),
		channels:   make(map[*Channel]struct{}),
	}
}

func (u *User) String() string {
	return u.fqn()
}

// fqn is the fully qualified name, nickname!username@hostname. It is the
// source prefix on every message the user originates.
func (u *User) fqn() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fmt.Sprintf("%s!%s@%s", u.nickname, u.username, u.hostname)
}

func (u *User) nick() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.nickname
}

// setNick must only be called by the registry, which keeps the nickname
// maps in step.
func (u *User) setNick(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nickname = nick
}

func (u *User) user() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.username
}

// setUsername records the username with its '~' prefix, truncating first
// so the stored form stays within MaxUsernameLength. Frozen once
// registered.
func (u *User) setUsername(username string) {
	if len(username) > irc.MaxUsernameLength-1 {
		username = username[:irc.MaxUsernameLength-1]
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.username = "~" + username
}

func (u *User) realName() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.realname
}

func (u *User) setRealName(realname string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.realname = realname
}

func (u *User) host() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hostname
}

func (u *User) isRegistered() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.registered
}

func (u *User) setRegistered() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.registered = true
}

// readyToRegister reports whether both halves of the handshake are done.
func (u *User) readyToRegister() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.nickname != "" && u.username != ""
}

// send enqueues a message for the user's writer goroutine. If the queue
// is full the message is dropped: either the writer died or the peer is
// too slow to drain 100 messages, and in both cases delivery is already
// best effort.
func (u *User) send(m irc.Message) {
	select {
	case u.WriteChan <- m:
	default:
		u.mu.Lock()
		exceeded := u.sendQueueExceeded
		u.sendQueueExceeded = true
		u.mu.Unlock()

		if !exceeded {
			log.WithField("nick", u.nick()).Warn("send queue full, dropping")
		}
	}
}

// reply sends the user a numeric from the server. The user's nickname is
// the first parameter, as every numeric demands; a connection that has
// not offered a nickname yet is addressed as "*".
func (u *User) reply(numeric string, params ...string) {
	nick := u.nick()
	if nick == "" {
		nick = "*"
	}

	u.send(irc.Message{
		Prefix:  u.serverName,
		Command: numeric,
		Params:  append([]string{nick}, params...),
	})
}

// broadcast sends m to every user sharing a channel with u, deduplicated
// across channels, optionally including u itself. Callers hold the
// registry lock, so the membership sets are stable.
func (u *User) broadcast(m irc.Message, includeSelf bool) {
	informed := map[*User]struct{}{u: {}}

	if includeSelf {
		u.send(m)
	}

	for _, ch := range u.channelList() {
		for _, member := range ch.memberList() {
			if _, ok := informed[member]; ok {
				continue
			}
			informed[member] = struct{}{}

			member.send(m)
		}
	}
}

// addChannel is one side of the membership relation. Only the registry
// calls it; Channel.addMember is the other side.
func (u *User) addChannel(ch *Channel) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.channels[ch]; ok {
		return false
	}
	u.channels[ch] = struct{}{}
	return true
}

func (u *User) removeChannel(ch *Channel) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.channels[ch]; !ok {
		return false
	}
	delete(u.channels, ch)
	return true
}

func (u *User) onChannel(ch *Channel) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.channels[ch]
	return ok
}

// channelList is a snapshot. Callers iterate it without any lock held.
func (u *User) channelList() []*Channel {
	u.mu.Lock()
	defer u.mu.Unlock()

	channels := make([]*Channel, 0, len(u.channels))
	for ch := range u.channels {
		channels = append(channels, ch)
	}
	return channels
}

func (u *User) addMode(mode byte) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.modes[mode]; ok {
		return false
	}
	u.modes[mode] = struct{}{}
	return true
}

func (u *User) removeMode(mode byte) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.modes[mode]; !ok {
		return false
	}
	delete(u.modes, mode)
	return true
}

// modeString renders the user's modes as "+..." with the flags sorted.
func (u *User) modeString() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	flags := make([]byte, 0, len(u.modes))
	for mode := range u.modes {
		flags = append(flags, mode)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })

	return "+" + string(flags)
}
