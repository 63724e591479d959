package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akirc/akirc/irc"
)

// handleCommand dispatches a registered client's command. Every
// handler takes the registry lock before touching shared state, and
// every message it queues is queued while holding it.
func (c *Client) handleCommand(cmd irc.Command) {
	switch cmd := cmd.(type) {
	case irc.Nick:
		c.nickCommand(cmd)
	case irc.User:
		c.userCommand(cmd)
	case irc.Join:
		c.joinCommand(cmd)
	case irc.Part:
		c.partCommand(cmd)
	case irc.Topic:
		c.topicCommand(cmd)
	case irc.List:
		c.listCommand(cmd)
	case irc.Who:
		c.whoCommand(cmd)
	case irc.Privmsg:
		c.privmsgCommand(cmd)
	case irc.Mode:
		c.modeCommand(cmd)
	case irc.Motd:
		c.motdCommand(cmd)
	case irc.Ping:
		c.pingCommand(cmd)
	case irc.Pong:
		// We never send PINGs, but some clients PONG unprompted. Nothing
		// to do.
	case irc.Quit:
		c.quitCommand(cmd)
	case irc.Error:
		c.log.Debug("Ignoring ERROR from client")
	case irc.Invalid:
		c.invalidCommand(cmd)
	}
}

func (c *Client) nickCommand(cmd irc.Nick) {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	// The NICK broadcast carries the old identity.
	oldFqn := u.fqn()

	if !reg.UpdateNick(u, cmd.Nickname) {
		u.reply(irc.ErrorNicknameInUse, cmd.Nickname,
			"Nickname is already in use")
		return
	}

	c.log.Infof("%s is now known as %s", oldFqn, cmd.Nickname)

	u.broadcast(irc.Message{
		Prefix:  oldFqn,
		Command: "NICK",
		Params:  []string{cmd.Nickname},
	}, true)
}

func (c *Client) userCommand(cmd irc.User) {
	reg := c.server.registry.Lock()
	c.user.reply(irc.ErrorAlreadyRegistred,
		"Unauthorized command (already registered)")
	reg.Unlock()
}

func (c *Client) joinCommand(cmd irc.Join) {
	if cmd.PartAll {
		c.partAllCommand()
		return
	}

	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	for _, name := range cmd.Channels {
		if !irc.IsValidChannel(name) {
			u.reply(irc.ErrorNoSuchChannel, name, "No such channel")
			continue
		}

		ch, added := reg.AddUserToChannel(u, name)
		if !added {
			// Already a member. Joining again is a no-op.
			continue
		}

		c.log.Infof("%s joined %s", u.nick(), ch.Name)

		ch.broadcast(irc.Message{
			Prefix:  u.fqn(),
			Command: "JOIN",
			Params:  []string{ch.Name},
		})

		c.sendTopic(ch)

		u.reply(irc.ReplyNamReply, "=", ch.Name, memberNicks(ch.memberList()))
		u.reply(irc.ReplyEndOfNames, ch.Name, "End of /NAMES list")
	}
}

// partAllCommand handles JOIN 0, which parts the user from every
// channel they are in.
func (c *Client) partAllCommand() {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	for _, ch := range u.channelList() {
		ch.broadcast(irc.Message{
			Prefix:  u.fqn(),
			Command: "PART",
			Params:  []string{ch.Name},
		})
		reg.RemoveUserFromChannel(u, ch)
	}
}

func (c *Client) partCommand(cmd irc.Part) {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	for _, name := range cmd.Channels {
		ch, ok := reg.GetChannel(name)
		if !ok {
			u.reply(irc.ErrorNoSuchChannel, name, "No such channel")
			continue
		}

		if !ch.hasMember(u) {
			u.reply(irc.ErrorNotOnChannel, name, "You're not on that channel")
			continue
		}

		// Broadcast before dropping membership so the parting user hears
		// their own PART.
		params := []string{ch.Name}
		if cmd.Reason != "" {
			params = append(params, cmd.Reason)
		}
		ch.broadcast(irc.Message{
			Prefix:  u.fqn(),
			Command: "PART",
			Params:  params,
		})

		reg.RemoveUserFromChannel(u, ch)
	}
}

func (c *Client) topicCommand(cmd irc.Topic) {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	ch, ok := reg.GetChannel(cmd.Channel)
	if !ok {
		u.reply(irc.ErrorNoSuchChannel, cmd.Channel, "No such channel")
		return
	}

	if !ch.hasMember(u) {
		u.reply(irc.ErrorNotOnChannel, cmd.Channel, "You're not on that channel")
		return
	}

	if !cmd.HasTopic {
		c.sendTopic(ch)
		return
	}

	// The topic may come back shorter than it went in.
	text := ch.setTopic(cmd.Topic, u.fqn())

	ch.broadcast(irc.Message{
		Prefix:  u.fqn(),
		Command: "TOPIC",
		Params:  []string{ch.Name, text},
	})
}

// sendTopic tells the user a channel's topic, or that there is none.
// Sent on join and for a TOPIC query. The caller holds the registry
// lock.
func (c *Client) sendTopic(ch *Channel) {
	text, who, when, ok := ch.topicInfo()
	if !ok {
		c.user.reply(irc.ReplyNoTopic, ch.Name, "No topic is set")
		return
	}

	c.user.reply(irc.ReplyTopic, ch.Name, text)
	c.user.reply(irc.ReplyTopicWhoTime, ch.Name, who, when)
}

func (c *Client) listCommand(cmd irc.List) {
	u := c.user

	var only map[string]struct{}
	if len(cmd.Channels) > 0 {
		only = make(map[string]struct{})
		for _, name := range cmd.Channels {
			only[name] = struct{}{}
		}
	}

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	u.reply(irc.ReplyListStart, "Channel", "Users  Name")

	for _, ch := range reg.Channels() {
		// Secret channels stay off the list, even when asked for by name.
		if ch.hasMode('s') {
			continue
		}
		if only != nil {
			if _, ok := only[ch.Name]; !ok {
				continue
			}
		}

		text, _, _, _ := ch.topicInfo()
		u.reply(irc.ReplyList, ch.Name, strconv.Itoa(ch.numMembers()), text)
	}

	u.reply(irc.ReplyListEnd, "End of /LIST")
}

func (c *Client) whoCommand(cmd irc.Who) {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	if strings.HasPrefix(cmd.Mask, "#") {
		if ch, ok := reg.GetChannel(cmd.Mask); ok {
			for _, member := range ch.memberList() {
				c.whoReply(cmd.Mask, member)
			}
		}
	} else if match, ok := reg.GetUser(cmd.Mask); ok {
		c.whoReply(cmd.Mask, match)
	}

	u.reply(irc.ReplyEndOfWho, cmd.Mask, "End of WHO list")
}

// whoReply sends one WHO match. "H" says the user is here as opposed
// to gone; there is no away status to report. The trailing parameter
// leads with the hop count, always 0 on a single server.
func (c *Client) whoReply(mask string, match *User) {
	c.user.reply(irc.ReplyWhoReply, mask, match.user(), match.host(),
		c.server.config.ServerName, match.nick(), "H", "0 "+match.realName())
}

func (c *Client) privmsgCommand(cmd irc.Privmsg) {
	u := c.user

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	for _, target := range cmd.Targets {
		m := irc.Message{
			Prefix:  u.fqn(),
			Command: "PRIVMSG",
			Params:  []string{target, cmd.Text},
		}

		if ch, ok := reg.GetChannel(target); ok {
			// Everyone but the sender.
			for _, member := range ch.memberList() {
				if member == u {
					continue
				}
				member.send(m)
			}
			continue
		}

		if other, ok := reg.GetUser(target); ok {
			other.send(m)
			continue
		}

		u.reply(irc.ErrorNoSuchNick, "No such nick/channel")
	}
}

func (c *Client) modeCommand(cmd irc.Mode) {
	reg := c.server.registry.Lock()
	defer reg.Unlock()

	if target, ok := reg.GetUser(cmd.Target); ok {
		c.userModeCommand(target, cmd.Modestring)
		return
	}

	if ch, ok := reg.GetChannel(cmd.Target); ok {
		c.channelModeCommand(ch, cmd.Modestring)
		return
	}

	// Not a known user nor an extant channel. This is the closest
	// matching error.
	c.user.reply(irc.ErrorNoSuchChannel, cmd.Target, "No such channel")
}

// userModeCommand queries or changes a user's modes. The caller holds
// the registry lock.
func (c *Client) userModeCommand(target *User, modestring string) {
	u := c.user

	if target != u {
		u.reply(irc.ErrorUsersDontMatch, "Cannot change mode for other users")
		return
	}

	if modestring == "" {
		u.reply(irc.ReplyUmodeIs, u.modeString())
		return
	}

	var rep modeReply
	unknown := false

	for _, change := range irc.ParseModeString(modestring, nil, "") {
		if !strings.Contains(userModes, string(change.Char)) {
			unknown = true
			continue
		}

		var changed bool
		if change.Add {
			changed = u.addMode(change.Char)
		} else {
			changed = u.removeMode(change.Char)
		}
		if changed {
			rep.add(change.Add, change.Char)
		}
	}

	if rep.s != "" {
		u.send(irc.Message{
			Prefix:  u.fqn(),
			Command: "MODE",
			Params:  []string{u.nick(), rep.s},
		})
	}

	// One complaint no matter how many unknown flags there were.
	if unknown {
		u.reply(irc.ErrorUmodeUnknownFlag, "Unknown MODE flag")
	}
}

// channelModeCommand queries or changes a channel's modes. The caller
// holds the registry lock.
func (c *Client) channelModeCommand(ch *Channel, modestring string) {
	u := c.user

	if !ch.hasMember(u) {
		u.reply(irc.ErrorChanOPrivsNeeded, ch.Name,
			"You're not channel operator")
		return
	}

	if modestring == "" {
		u.reply(irc.ReplyChannelModeIs, ch.Name, ch.modeString())
		u.reply(irc.ReplyCreationTime, ch.Name, ch.CreationTime)
		return
	}

	changes := irc.ParseModeString(modestring, nil, "")

	// Refuse the whole command over a single unknown flag.
	for _, change := range changes {
		if !strings.Contains(channelModes, string(change.Char)) {
			u.reply(irc.ErrorUnknownMode, string(change.Char),
				"is unknown mode char to me")
			return
		}
	}

	var rep modeReply
	for _, change := range changes {
		if ch.setModeTypeD(change.Char, change.Add) {
			rep.add(change.Add, change.Char)
		}
	}

	if rep.s != "" {
		ch.broadcast(irc.Message{
			Prefix:  u.fqn(),
			Command: "MODE",
			Params:  []string{ch.Name, rep.s},
		})
	}
}

func (c *Client) motdCommand(cmd irc.Motd) {
	u := c.user
	cfg := c.server.config

	reg := c.server.registry.Lock()
	defer reg.Unlock()

	if cfg.MOTD == "" {
		u.reply(irc.ErrorNoMotd, "MOTD File is missing")
		return
	}

	if cmd.Target != "" && cmd.Target != cfg.ServerName {
		u.reply(irc.ErrorNoSuchServer, cmd.Target, "No such server")
		return
	}

	u.reply(irc.ReplyMotdStart,
		fmt.Sprintf("- %s Message of the day - ", cfg.ServerName))
	for _, line := range motdLines(cfg.MOTD) {
		u.reply(irc.ReplyMotd, "- "+line)
	}
	u.reply(irc.ReplyEndOfMotd, "End of /MOTD command")
}

func (c *Client) pingCommand(cmd irc.Ping) {
	serverName := c.server.config.ServerName

	reg := c.server.registry.Lock()
	c.user.send(irc.Message{
		Prefix:  serverName,
		Command: "PONG",
		Params:  []string{serverName, cmd.Token},
	})
	reg.Unlock()
}

func (c *Client) quitCommand(cmd irc.Quit) {
	u := c.user

	reg := c.server.registry.Lock()

	u.broadcast(irc.Message{
		Prefix:  u.fqn(),
		Command: "QUIT",
		Params:  []string{cmd.Reason},
	}, false)

	u.send(irc.Message{
		Prefix:  c.server.config.ServerName,
		Command: "ERROR",
		Params: []string{fmt.Sprintf("Closing Link: %s (Client Quit)",
			u.fqn())},
	})

	reg.Unlock()

	// readLoop sees this and falls through to teardown.
	c.quitting = true
}

func (c *Client) invalidCommand(cmd irc.Invalid) {
	if cmd.Numeric == "" {
		c.log.Debugf("Dropping %s silently", cmd.Name)
		return
	}

	reg := c.server.registry.Lock()
	replyInvalid(c.user, cmd)
	reg.Unlock()
}

// invalidText is the standard trailing text for each numeric the
// parser can attach to an Invalid command.
var invalidText = map[string]string{
	irc.ErrorNoRecipient:      "No recipient given (PRIVMSG)",
	irc.ErrorNoTextToSend:     "No text to send",
	irc.ErrorUnknownCommand:   "Unknown command",
	irc.ErrorNoNicknameGiven:  "No nickname given",
	irc.ErrorErroneusNickname: "Erroneous nickname",
	irc.ErrorNeedMoreParams:   "Not enough parameters",
}

// replyInvalid sends the numeric a malformed command drew. The caller
// holds the registry lock.
func replyInvalid(u *User, cmd irc.Invalid) {
	params := append([]string{}, cmd.Params...)
	params = append(params, invalidText[cmd.Numeric])
	u.reply(cmd.Numeric, params...)
}

// modeReply accumulates applied mode changes into the modestring we
// echo back, writing each sign only when it changes.
type modeReply struct {
	s        string
	lastSign byte
}

func (r *modeReply) add(add bool, mode byte) {
	sign := byte('-')
	if add {
		sign = '+'
	}
	if sign != r.lastSign {
		r.s += string(sign)
		r.lastSign = sign
	}
	r.s += string(mode)
}
