// Package irc provides encoding and decoding of IRC protocol messages,
// and parsing of client commands into typed forms.
package irc

import (
	"errors"
	"fmt"
)

// MaxLineLength is the maximum protocol message line length. It includes
// CRLF.
const MaxLineLength = 512

// Protocol numerics. Reply* are the RPL_ numerics, Error* the ERR_ ones.
const (
	ReplyWelcome       = "001"
	ReplyYourHost      = "002"
	ReplyCreated       = "003"
	ReplyMyInfo        = "004"
	ReplyISupport      = "005"
	ReplyUmodeIs       = "221"
	ReplyEndOfWho      = "315"
	ReplyListStart     = "321"
	ReplyList          = "322"
	ReplyListEnd       = "323"
	ReplyChannelModeIs = "324"
	ReplyCreationTime  = "329"
	ReplyNoTopic       = "331"
	ReplyTopic         = "332"
	ReplyTopicWhoTime  = "333"
	ReplyWhoReply      = "352"
	ReplyNamReply      = "353"
	ReplyEndOfNames    = "366"
	ReplyMotd          = "372"
	ReplyMotdStart     = "375"
	ReplyEndOfMotd     = "376"

	ErrorNoSuchNick       = "401"
	ErrorNoSuchServer     = "402"
	ErrorNoSuchChannel    = "403"
	ErrorNoRecipient      = "411"
	ErrorNoTextToSend     = "412"
	ErrorUnknownCommand   = "421"
	ErrorNoMotd           = "422"
	ErrorNoNicknameGiven  = "431"
	ErrorErroneusNickname = "432"
	ErrorNicknameInUse    = "433"
	ErrorNotOnChannel     = "442"
	ErrorNeedMoreParams   = "461"
	ErrorAlreadyRegistred = "462"
	ErrorUnknownMode      = "472"
	ErrorChanOPrivsNeeded = "482"
	ErrorUmodeUnknownFlag = "501"
	ErrorUsersDontMatch   = "502"
)

// ErrTruncated is the error returned by Encode and ParseMessage if the
// message gets truncated due to encoding to more than MaxLineLength bytes.
var ErrTruncated = errors.New("message truncated")

// It is not always valid for there to be a parameter with zero characters.
// If there is one, it should have a ':' prefix.
var errEmptyParam = errors.New("parameter with zero characters")

// Message holds a protocol message. See section 2.3.1 in RFC 1459/2812.
type Message struct {
	// Prefix may be blank. It's optional.
	Prefix string

	// Command is the IRC command. For example, PRIVMSG. It may be a numeric.
	Command string

	// There are at most 15 parameters: up to 14 middles and a trailing.
	Params []string
}

func (m Message) String() string {
	return fmt.Sprintf("Prefix [%s] Command [%s] Params%q", m.Prefix, m.Command,
		m.Params)
}
