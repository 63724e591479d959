package irc

// Protocol limits. These are advertised to clients in RPL_ISUPPORT.
const (
	// MaxNickLength is the maximum nickname length in bytes (NICKLEN).
	MaxNickLength = 16

	// MaxUsernameLength is the maximum username length in bytes, including
	// the '~' prefix (USERLEN).
	MaxUsernameLength = 10

	// MaxTopicLength is the maximum channel topic length in bytes
	// (TOPICLEN).
	MaxTopicLength = 307
)

// IsValidNick checks a nickname against the grammar: at most
// MaxNickLength bytes, the first character a letter or a special, the
// remainder adding digits and '-'.
func IsValidNick(s string) bool {
	if len(s) == 0 || len(s) > MaxNickLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]

		if isLetter(c) || isSpecial(c) {
			continue
		}

		// Digits and '-' are valid after the first character.
		if i > 0 && (isDigit(c) || c == '-') {
			continue
		}

		return false
	}

	return true
}

// IsValidChannel checks a channel name: a '#', '+', or '&' prefix, or '!'
// followed by a five character channel ID of uppercase letters and digits;
// then at least one character excluding NUL, BEL, CR, LF, space, comma,
// and colon.
func IsValidChannel(s string) bool {
	rest := ""

	switch {
	case len(s) == 0:
		return false
	case s[0] == '#' || s[0] == '+' || s[0] == '&':
		rest = s[1:]
	case s[0] == '!':
		if len(s) < 6 {
			return false
		}
		for i := 1; i <= 5; i++ {
			c := s[i]
			if !isDigit(c) && (c < 'A' || c > 'Z') {
				return false
			}
		}
		rest = s[6:]
	default:
		return false
	}

	if len(rest) == 0 {
		return false
	}

	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\x00', '\x07', '\r', '\n', ' ', ',', ':':
			return false
		}
	}

	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isSpecial reports whether c is in the class of characters a nickname
// may start with besides letters.
func isSpecial(c byte) bool {
	switch c {
	case '[', ']', '\\', '\'', '_', '^', '{', '|', '}':
		return true
	}
	return false
}
