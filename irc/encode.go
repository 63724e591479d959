package irc

import (
	"fmt"
	"strings"
)

// Encode encodes the Message into a raw protocol message string including
// the trailing CRLF.
//
// If encoding the message would exceed the allowed maximum length (more
// than MaxLineLength bytes), we truncate, return as much as we can, and
// return ErrTruncated. The truncated message may still be usable.
//
// It does not enforce command specific semantics.
func (m Message) Encode() (string, error) {
	s := ""

	if len(m.Prefix) > 0 {
		s += ":" + m.Prefix + " "
	}

	s += m.Command

	if len(s)+2 > MaxLineLength {
		return "", fmt.Errorf("message with only prefix/command is too long")
	}

	truncated := false

	// Both RFC 1459 and RFC 2812 limit us to 15 parameters.
	if len(m.Params) > 15 {
		return "", fmt.Errorf("too many parameters")
	}

	for i, param := range m.Params {
		// The parameter needs a ':' prefix in three cases: it contains a
		// space, its first character is a ':', or it is the last parameter
		// and empty. The last case keeps an empty trailing parameter visible
		// on the wire (e.g. a TOPIC unset). RFC 1459/2812's grammar permits
		// all three only on the trailing parameter.
		if strings.IndexByte(param, ' ') != -1 ||
			(param != "" && param[0] == ':') ||
			param == "" {
			param = ":" + param

			// There can only be one <trailing>.
			if i+1 != len(m.Params) {
				return "", fmt.Errorf(
					"parameter problem: ':' or ' ' outside last parameter")
			}
		}

		// If we add the parameter as is, do we exceed the maximum length?
		if len(s)+1+len(param)+2 > MaxLineLength {
			// Either we can truncate the parameter and include a portion of
			// it, or the parameter is too short to include at all. If it is
			// too short to include, don't add the space separator either.

			// Claim the space separator (1) and CRLF (2) as used, leaving the
			// rest for the parameter.
			lengthAvailable := MaxLineLength - (len(s) + 1 + 2)

			if lengthAvailable > 0 {
				s += " " + param[0:lengthAvailable]
			}

			truncated = true
			break
		}

		s += " " + param
	}

	s += "\r\n"

	if truncated {
		return s, ErrTruncated
	}

	return s, nil
}
