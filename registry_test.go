package main

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/akirc/akirc/irc"
)

var _ = Describe("Registry", func() {
	var reg *Registry

	BeforeEach(func() {
		reg = newRegistry()
	})

	// registeredUser takes a user through the handshake steps so it ends
	// up in the registry under nick.
	registeredUser := func(nick string) *User {
		u := newUser(nick+".example.com", defaultServerName)

		l := reg.Lock()
		defer l.Unlock()

		Expect(l.ClaimUnregisteredNick("", nick)).To(BeTrue())
		u.setNick(nick)
		u.setUsername(nick)
		l.RegisterUser(u)

		return u
	}

	Describe("nickname claims", func() {
		It("lets a connection claim a free nickname", func() {
			l := reg.Lock()
			defer l.Unlock()

			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeTrue())
			Expect(l.NickInUse("alice")).To(BeTrue())
		})

		It("refuses a nickname another connection holds mid handshake", func() {
			l := reg.Lock()
			defer l.Unlock()

			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeTrue())
			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeFalse())
		})

		It("refuses a registered nickname", func() {
			registeredUser("alice")

			l := reg.Lock()
			defer l.Unlock()

			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeFalse())
		})

		It("frees the old claim when a pending connection renames", func() {
			l := reg.Lock()
			defer l.Unlock()

			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeTrue())
			Expect(l.ClaimUnregisteredNick("alice", "alicia")).To(BeTrue())

			Expect(l.NickInUse("alice")).To(BeFalse())
			Expect(l.NickInUse("alicia")).To(BeTrue())
		})

		It("frees a claim on release", func() {
			l := reg.Lock()
			defer l.Unlock()

			Expect(l.ClaimUnregisteredNick("", "alice")).To(BeTrue())
			l.ReleaseUnregisteredNick("alice")

			Expect(l.NickInUse("alice")).To(BeFalse())
		})
	})

	Describe("registration", func() {
		It("promotes the pending claim to a registered user", func() {
			u := registeredUser("alice")

			Expect(u.isRegistered()).To(BeTrue())

			l := reg.Lock()
			defer l.Unlock()

			got, ok := l.GetUser("alice")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(u))
			Expect(l.NickInUse("alice")).To(BeTrue())
		})
	})

	Describe("UpdateNick", func() {
		It("renames and reindexes the user", func() {
			u := registeredUser("alice")

			l := reg.Lock()
			defer l.Unlock()

			Expect(l.UpdateNick(u, "alicia")).To(BeTrue())

			Expect(u.nick()).To(Equal("alicia"))
			_, ok := l.GetUser("alice")
			Expect(ok).To(BeFalse())
			got, ok := l.GetUser("alicia")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(u))
		})

		It("refuses a taken nickname and changes nothing", func() {
			u := registeredUser("alice")
			registeredUser("bob")

			l := reg.Lock()
			defer l.Unlock()

			Expect(l.UpdateNick(u, "bob")).To(BeFalse())

			Expect(u.nick()).To(Equal("alice"))
			got, ok := l.GetUser("alice")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(u))
		})

		It("refuses the user's own nickname", func() {
			u := registeredUser("alice")

			l := reg.Lock()
			defer l.Unlock()

			Expect(l.UpdateNick(u, "alice")).To(BeFalse())
		})
	})

	Describe("channel membership", func() {
		It("creates a channel on first join and destroys it on last part", func() {
			u := registeredUser("alice")

			l := reg.Lock()
			defer l.Unlock()

			ch, added := l.AddUserToChannel(u, "#room")
			Expect(added).To(BeTrue())
			Expect(ch.hasMember(u)).To(BeTrue())
			Expect(u.onChannel(ch)).To(BeTrue())

			got, ok := l.GetChannel("#room")
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(ch))

			Expect(l.RemoveUserFromChannel(u, ch)).To(BeTrue())

			_, ok = l.GetChannel("#room")
			Expect(ok).To(BeFalse())
			Expect(u.onChannel(ch)).To(BeFalse())
		})

		It("reports a second join without changing anything", func() {
			u := registeredUser("alice")

			l := reg.Lock()
			defer l.Unlock()

			first, added := l.AddUserToChannel(u, "#room")
			Expect(added).To(BeTrue())

			second, added := l.AddUserToChannel(u, "#room")
			Expect(added).To(BeFalse())
			Expect(second).To(BeIdenticalTo(first))
			Expect(first.numMembers()).To(Equal(1))
		})

		It("keeps the channel while members remain", func() {
			alice := registeredUser("alice")
			bob := registeredUser("bob")

			l := reg.Lock()
			defer l.Unlock()

			ch, _ := l.AddUserToChannel(alice, "#room")
			_, _ = l.AddUserToChannel(bob, "#room")

			Expect(l.RemoveUserFromChannel(alice, ch)).To(BeTrue())

			_, ok := l.GetChannel("#room")
			Expect(ok).To(BeTrue())
			Expect(ch.numMembers()).To(Equal(1))
			Expect(ch.hasMember(bob)).To(BeTrue())
		})

		It("reports a part by a non member without changing anything", func() {
			alice := registeredUser("alice")
			bob := registeredUser("bob")

			l := reg.Lock()
			defer l.Unlock()

			ch, _ := l.AddUserToChannel(alice, "#room")

			Expect(l.RemoveUserFromChannel(bob, ch)).To(BeFalse())
			Expect(ch.numMembers()).To(Equal(1))
		})
	})

	Describe("RemoveUser", func() {
		It("drops the user from every channel and frees the nickname", func() {
			alice := registeredUser("alice")
			bob := registeredUser("bob")

			l := reg.Lock()
			defer l.Unlock()

			_, _ = l.AddUserToChannel(alice, "#solo")
			shared, _ := l.AddUserToChannel(alice, "#shared")
			_, _ = l.AddUserToChannel(bob, "#shared")

			l.RemoveUser(alice)

			// #solo lost its only member and is gone; #shared lives on.
			_, ok := l.GetChannel("#solo")
			Expect(ok).To(BeFalse())
			got, ok := l.GetChannel("#shared")
			Expect(ok).To(BeTrue())
			Expect(got.numMembers()).To(Equal(1))
			Expect(got.hasMember(bob)).To(BeTrue())
			Expect(shared.hasMember(alice)).To(BeFalse())

			_, ok = l.GetUser("alice")
			Expect(ok).To(BeFalse())
			Expect(l.NickInUse("alice")).To(BeFalse())
		})
	})

	Describe("Broadcast", func() {
		It("queues the message for every registered user", func() {
			alice := registeredUser("alice")
			bob := registeredUser("bob")

			m := irc.Message{Prefix: defaultServerName, Command: "NOTICE",
				Params: []string{"*", "going down"}}

			l := reg.Lock()
			l.Broadcast(m)
			l.Unlock()

			for _, u := range []*User{alice, bob} {
				Expect(drain(u)).To(ConsistOf(m))
			}
		})
	})
})
