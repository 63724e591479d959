package main

import (
	"sync"

	"github.com/akirc/akirc/irc"
	log "github.com/sirupsen/logrus"
)

// Registry is the shared directory of users and channels. All lookups
// and mutations happen under one mutex so cross entity invariants
// (nickname uniqueness, membership symmetry) can be checked and
// changed atomically.
//
// Locking order: the registry mutex is always taken before any user or
// channel mutex, never after.
type Registry struct {
	mu sync.Mutex

	// users maps a registered user's current nickname to the user.
	users map[string]*User

	// pending holds nicknames claimed by users that have not finished
	// registration. A pending nickname blocks other users from taking
	// it just like a registered one does.
	pending map[string]struct{}

	// channels maps channel name to channel. A channel exists exactly
	// while it has at least one member.
	channels map[string]*Channel
}

func newRegistry() *Registry {
	return &Registry{
		users:    make(map[string]*User),
		pending:  make(map[string]struct{}),
		channels: make(map[string]*Channel),
	}
}

// Lock takes the registry mutex and returns a handle whose methods may
// read and mutate the maps. The caller must call Unlock on the handle
// when done and must not retain it afterwards.
func (r *Registry) Lock() *LockedRegistry {
	r.mu.Lock()
	return &LockedRegistry{r: r}
}

// LockedRegistry is proof that the registry mutex is held. Every
// method that touches the maps lives here so it is impossible to call
// one without locking first.
type LockedRegistry struct {
	r *Registry
}

func (l *LockedRegistry) Unlock() {
	l.r.mu.Unlock()
}

// GetUser looks up a registered user by nickname.
func (l *LockedRegistry) GetUser(nick string) (*User, bool) {
	u, ok := l.r.users[nick]
	return u, ok
}

// GetChannel looks up a channel by name.
func (l *LockedRegistry) GetChannel(name string) (*Channel, bool) {
	ch, ok := l.r.channels[name]
	return ch, ok
}

// NickInUse reports whether a nickname is held by anyone, registered
// or pending.
func (l *LockedRegistry) NickInUse(nick string) bool {
	if _, ok := l.r.users[nick]; ok {
		return true
	}
	_, ok := l.r.pending[nick]
	return ok
}

// Users is a snapshot of all registered users.
func (l *LockedRegistry) Users() []*User {
	users := make([]*User, 0, len(l.r.users))
	for _, u := range l.r.users {
		users = append(users, u)
	}
	return users
}

// Channels is a snapshot of all channels.
func (l *LockedRegistry) Channels() []*Channel {
	channels := make([]*Channel, 0, len(l.r.channels))
	for _, ch := range l.r.channels {
		channels = append(channels, ch)
	}
	return channels
}

// ClaimUnregisteredNick moves an unregistered user's claim from
// oldNick to newNick. oldNick is blank on the user's first NICK.
// It reports false, without changing anything, if newNick is taken.
func (l *LockedRegistry) ClaimUnregisteredNick(oldNick, newNick string) bool {
	if l.NickInUse(newNick) {
		return false
	}
	if oldNick != "" {
		if _, ok := l.r.pending[oldNick]; !ok {
			log.Fatalf("pending nickname %s not tracked", oldNick)
		}
		delete(l.r.pending, oldNick)
	}
	l.r.pending[newNick] = struct{}{}
	return true
}

// ReleaseUnregisteredNick drops a pending claim. Called when a
// connection dies before completing registration. Blank means the
// user never claimed a nickname.
func (l *LockedRegistry) ReleaseUnregisteredNick(nick string) {
	if nick == "" {
		return
	}
	if _, ok := l.r.pending[nick]; !ok {
		log.Fatalf("pending nickname %s not tracked", nick)
	}
	delete(l.r.pending, nick)
}

// RegisterUser promotes a user whose nickname and username are both
// set. The nickname moves from the pending set to the user map.
func (l *LockedRegistry) RegisterUser(u *User) {
	nick := u.nick()
	if _, ok := l.r.pending[nick]; !ok {
		log.Fatalf("registering user %s without a pending nickname", nick)
	}
	delete(l.r.pending, nick)

	if _, ok := l.r.users[nick]; ok {
		log.Fatalf("nickname %s already registered", nick)
	}
	l.r.users[nick] = u
	u.setRegistered()
}

// UpdateNick changes a registered user's nickname. It reports false,
// without changing anything, if newNick is taken.
func (l *LockedRegistry) UpdateNick(u *User, newNick string) bool {
	if l.NickInUse(newNick) {
		return false
	}

	oldNick := u.nick()
	if l.r.users[oldNick] != u {
		log.Fatalf("user map does not hold %s under %s", u.fqn(), oldNick)
	}
	delete(l.r.users, oldNick)
	u.setNick(newNick)
	l.r.users[newNick] = u
	return true
}

// AddUserToChannel joins a user to the named channel, creating the
// channel if it does not exist. It reports false if the user was
// already a member, in which case nothing changed.
func (l *LockedRegistry) AddUserToChannel(u *User, name string) (*Channel, bool) {
	ch, ok := l.r.channels[name]
	if !ok {
		ch = newChannel(name)
		l.r.channels[name] = ch
	}

	addedToChannel := ch.addMember(u)
	addedToUser := u.addChannel(ch)
	if addedToChannel != addedToUser {
		log.Fatalf("membership of %s in %s is one sided", u.fqn(), name)
	}
	return ch, addedToChannel
}

// RemoveUserFromChannel parts a user from a channel. The channel is
// destroyed when its last member leaves. It reports false if the user
// was not a member.
func (l *LockedRegistry) RemoveUserFromChannel(u *User, ch *Channel) bool {
	removedFromChannel := ch.removeMember(u)
	removedFromUser := u.removeChannel(ch)
	if removedFromChannel != removedFromUser {
		log.Fatalf("membership of %s in %s is one sided", u.fqn(), ch.Name)
	}
	if !removedFromChannel {
		return false
	}

	if ch.numMembers() == 0 {
		delete(l.r.channels, ch.Name)
	}
	return true
}

// RemoveUser takes a registered user out of every channel and out of
// the user map. Membership is torn down silently. The caller sends any
// parting messages before calling this.
func (l *LockedRegistry) RemoveUser(u *User) {
	for _, ch := range u.channelList() {
		if !l.RemoveUserFromChannel(u, ch) {
			log.Fatalf("%s not a member of listed channel %s", u.fqn(), ch.Name)
		}
	}

	nick := u.nick()
	if l.r.users[nick] != u {
		log.Fatalf("user map does not hold %s under %s", u.fqn(), nick)
	}
	delete(l.r.users, nick)
}

// Broadcast queues a message to every registered user.
func (l *LockedRegistry) Broadcast(m irc.Message) {
	for _, u := range l.r.users {
		u.send(m)
	}
}
