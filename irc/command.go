package irc

import "strings"

// Command is a client command parsed out of a Message into its typed
// form. The concrete types are the commands this server understands, plus
// Invalid for commands that are recognized but ill-formed, or not
// recognized at all.
//
// Numeric replies are never parsed into a Command: clients do not send
// them, so a message whose command is a numeric falls out as Invalid.
type Command interface {
	command()
}

// Nick is a NICK command. The nickname has been truncated to
// MaxNickLength and validated.
type Nick struct {
	Nickname string
}

// User is a USER command. Its second and third parameters are discarded.
type User struct {
	Username string
	Realname string
}

// Join is a JOIN command. PartAll is set for "JOIN 0", which parts every
// channel the user is in; Channels and Keys are empty in that case.
type Join struct {
	Channels []string
	Keys     []string
	PartAll  bool
}

// Part is a PART command. Reason may be blank.
type Part struct {
	Channels []string
	Reason   string
}

// Topic is a TOPIC command. HasTopic distinguishes setting a blank topic
// from querying the current one.
type Topic struct {
	Channel  string
	Topic    string
	HasTopic bool
}

// List is a LIST command. No channels means enumerate everything.
type List struct {
	Channels []string
}

// Who is a WHO command.
type Who struct {
	Mask string
}

// Privmsg is a PRIVMSG command.
type Privmsg struct {
	Targets []string
	Text    string
}

// Mode is a MODE command. Modestring is blank for a query. Scan it with
// ParseModeString once you know which flags take an argument for the
// target in question.
type Mode struct {
	Target     string
	Modestring string
	Args       []string
}

// Motd is a MOTD command. Target may be blank.
type Motd struct {
	Target string
}

// Ping is a PING command.
type Ping struct {
	Token string
}

// Pong is a PONG command.
type Pong struct {
	Token string
}

// Quit is a QUIT command. Reason may be blank.
type Quit struct {
	Reason string
}

// Error is an ERROR command. Clients don't normally send these.
type Error struct {
	Text string
}

// Invalid is a command we could not fully parse. Name is the uppercased
// command name. If Numeric is non-blank the dispatcher replies with it,
// with Params carrying the numeric's leading parameters; if blank the
// command is dropped silently.
type Invalid struct {
	Name    string
	Numeric string
	Params  []string
}

func (Nick) command()    {}
func (User) command()    {}
func (Join) command()    {}
func (Part) command()    {}
func (Topic) command()   {}
func (List) command()    {}
func (Who) command()     {}
func (Privmsg) command() {}
func (Mode) command()    {}
func (Motd) command()    {}
func (Ping) command()    {}
func (Pong) command()    {}
func (Quit) command()    {}
func (Error) command()   {}
func (Invalid) command() {}

// ParseCommand turns a wire Message into its typed command. Problems
// surface as Invalid rather than an error: a malformed command is still a
// command, it just draws a numeric instead of a handler.
func ParseCommand(m Message) Command {
	// ParseMessage upper cases the command, but be safe with hand built
	// messages.
	name := strings.ToUpper(m.Command)

	switch name {
	case "NICK":
		return parseNick(m)
	case "USER":
		return parseUser(m)
	case "JOIN":
		return parseJoin(m)
	case "PART":
		return parsePart(m)
	case "TOPIC":
		return parseTopic(m)
	case "LIST":
		list := List{}
		if len(m.Params) > 0 {
			list.Channels = strings.Split(m.Params[0], ",")
		}
		return list
	case "WHO":
		if len(m.Params) == 0 {
			return needMoreParams(name)
		}
		return Who{Mask: m.Params[0]}
	case "PRIVMSG":
		return parsePrivmsg(m)
	case "MODE":
		return parseMode(m)
	case "MOTD":
		motd := Motd{}
		if len(m.Params) > 0 {
			motd.Target = m.Params[0]
		}
		return motd
	case "PING":
		if len(m.Params) == 0 {
			return needMoreParams(name)
		}
		return Ping{Token: m.Params[0]}
	case "PONG":
		if len(m.Params) == 0 {
			return needMoreParams(name)
		}
		return Pong{Token: m.Params[0]}
	case "QUIT":
		quit := Quit{}
		if len(m.Params) > 0 {
			quit.Reason = m.Params[0]
		}
		return quit
	case "ERROR":
		if len(m.Params) == 0 {
			return needMoreParams(name)
		}
		return Error{Text: m.Params[0]}
	}

	return Invalid{
		Name:    name,
		Numeric: ErrorUnknownCommand,
		Params:  []string{name},
	}
}

func needMoreParams(name string) Invalid {
	return Invalid{
		Name:    name,
		Numeric: ErrorNeedMoreParams,
		Params:  []string{name},
	}
}

func parseNick(m Message) Command {
	if len(m.Params) == 0 || m.Params[0] == "" {
		return Invalid{Name: "NICK", Numeric: ErrorNoNicknameGiven}
	}

	// Overlong nicknames are truncated rather than rejected.
	nick := m.Params[0]
	if len(nick) > MaxNickLength {
		nick = nick[:MaxNickLength]
	}

	if !IsValidNick(nick) {
		return Invalid{
			Name:    "NICK",
			Numeric: ErrorErroneusNickname,
			Params:  []string{m.Params[0]},
		}
	}

	return Nick{Nickname: nick}
}

func parseUser(m Message) Command {
	if len(m.Params) < 4 {
		return needMoreParams("USER")
	}

	return User{Username: m.Params[0], Realname: m.Params[3]}
}

func parseJoin(m Message) Command {
	if len(m.Params) == 0 {
		return needMoreParams("JOIN")
	}

	if m.Params[0] == "0" {
		return Join{PartAll: true}
	}

	join := Join{Channels: strings.Split(m.Params[0], ",")}
	if len(m.Params) > 1 {
		join.Keys = strings.Split(m.Params[1], ",")
	}

	return join
}

func parsePart(m Message) Command {
	if len(m.Params) == 0 {
		return needMoreParams("PART")
	}

	part := Part{Channels: strings.Split(m.Params[0], ",")}
	if len(m.Params) > 1 {
		part.Reason = m.Params[1]
	}

	return part
}

func parseTopic(m Message) Command {
	if len(m.Params) == 0 {
		return needMoreParams("TOPIC")
	}

	topic := Topic{Channel: m.Params[0]}
	if len(m.Params) > 1 {
		topic.Topic = m.Params[1]
		topic.HasTopic = true
	}

	return topic
}

func parsePrivmsg(m Message) Command {
	if len(m.Params) == 0 {
		return Invalid{Name: "PRIVMSG", Numeric: ErrorNoRecipient}
	}

	if len(m.Params) < 2 || m.Params[1] == "" {
		return Invalid{Name: "PRIVMSG", Numeric: ErrorNoTextToSend}
	}

	return Privmsg{
		Targets: strings.Split(m.Params[0], ","),
		Text:    m.Params[1],
	}
}

func parseMode(m Message) Command {
	if len(m.Params) == 0 {
		return needMoreParams("MODE")
	}

	mode := Mode{Target: m.Params[0]}
	if len(m.Params) > 1 {
		mode.Modestring = m.Params[1]
		mode.Args = m.Params[2:]
	}

	return mode
}
