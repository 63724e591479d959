package main

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/akirc/akirc/irc"
)

// Channel holds everything to do with a channel. A channel with zero
// members does not exist: the registry drops it on the last part or quit.
type Channel struct {
	// Name is matched byte exact against what clients send.
	Name string

	// CreationTime is UNIX seconds at creation. It is kept as a string
	// since it only ever goes out on the wire (RPL_CREATIONTIME).
	CreationTime string

	mu sync.Mutex

	members map[*User]struct{}
	modes   map[byte]struct{}

	// Topic state. who and when are only meaningful while set is true.
	topic struct {
		set  bool
		text string
		who  string
		when string
	}
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:         name,
		CreationTime: strconv.FormatInt(time.Now().Unix(), 10),
		members:      make(map[*User]struct{}),
		modes:        make(map[byte]struct{}),
	}
}

func (c *Channel) String() string {
	return c.Name
}

// topicInfo returns the topic triple. ok is false when no topic has ever
// been set.
func (c *Channel) topicInfo() (text, who, when string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic.text, c.topic.who, c.topic.when, c.topic.set
}

// setTopic records a new topic, truncated to MaxTopicLength bytes, along
// with who set it and when. A blank text still counts as a set topic.
func (c *Channel) setTopic(text, setter string) string {
	if len(text) > irc.MaxTopicLength {
		text = text[:irc.MaxTopicLength]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.topic.set = true
	c.topic.text = text
	c.topic.who = setter
	c.topic.when = strconv.FormatInt(time.Now().Unix(), 10)

	return text
}

// memberList is a stable snapshot. Callers iterate it without the
// channel lock held.
func (c *Channel) memberList() []*User {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := make([]*User, 0, len(c.members))
	for member := range c.members {
		members = append(members, member)
	}
	return members
}

func (c *Channel) numMembers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

func (c *Channel) hasMember(u *User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.members[u]
	return ok
}

// addMember is one side of the membership relation. Only the registry
// calls it; User.addChannel is the other side.
func (c *Channel) addMember(u *User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[u]; ok {
		return false
	}
	c.members[u] = struct{}{}
	return true
}

func (c *Channel) removeMember(u *User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[u]; !ok {
		return false
	}
	delete(c.members, u)
	return true
}

// broadcast sends m to every current member.
func (c *Channel) broadcast(m irc.Message) {
	for _, member := range c.memberList() {
		member.send(m)
	}
}

// setModeTypeD flips a flag mode (one taking no parameter) on or off,
// reporting whether anything changed.
func (c *Channel) setModeTypeD(mode byte, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.modes[mode]
	if on == ok {
		return false
	}

	if on {
		c.modes[mode] = struct{}{}
	} else {
		delete(c.modes, mode)
	}
	return true
}

func (c *Channel) hasMode(mode byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.modes[mode]
	return ok
}

// modeString renders the channel's modes as "+..." with the flags sorted.
func (c *Channel) modeString() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	flags := make([]byte, 0, len(c.modes))
	for mode := range c.modes {
		flags = append(flags, mode)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })

	return "+" + string(flags)
}
