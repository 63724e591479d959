package irc

import (
	"fmt"
	"strings"
)

// ParseMessage parses a protocol message from a client. The line may be
// terminated by CR, LF, CRLF, or nothing (a reader that splits on CR/LF
// will already have stripped the ending).
//
// See RFC 1459/2812 section 2.3.1.
func ParseMessage(line string) (Message, error) {
	line, err := fixLineEnding(line)
	if err != nil {
		return Message{}, err
	}

	truncated := false

	if len(line) > MaxLineLength {
		truncated = true

		line = line[0:MaxLineLength-2] + "\r\n"
	}

	message := Message{}
	index := 0

	// It is optional to have a prefix.
	if line[0] == ':' {
		prefix, prefixIndex, err := parsePrefix(line)
		if err != nil {
			return Message{}, fmt.Errorf("problem parsing prefix: %s", err)
		}
		index = prefixIndex

		message.Prefix = prefix

		if index >= len(line) {
			return Message{}, fmt.Errorf("malformed message, prefix only")
		}
	}

	command, index, err := parseCommand(line, index)
	if err != nil {
		return Message{}, fmt.Errorf("problem parsing command: %s", err)
	}

	message.Command = command

	params, index, err := parseParams(line, index)
	if err != nil {
		return Message{}, fmt.Errorf("problem parsing params: %s", err)
	}

	if len(params) > 15 {
		return Message{}, fmt.Errorf("too many parameters")
	}

	message.Params = params

	// index should be pointing at the CR after parsing params.
	if index != len(line)-2 || line[index] != '\r' || line[index+1] != '\n' {
		return Message{}, fmt.Errorf(
			"malformed message, no CRLF found, looking for end at position %d",
			index)
	}

	if truncated {
		return message, ErrTruncated
	}

	return message, nil
}

// fixLineEnding normalizes the line ending to CRLF. We accept CR, LF,
// CRLF, or a line already stripped of its ending.
func fixLineEnding(line string) (string, error) {
	n := len(line)
	for n > 0 && (line[n-1] == '\r' || line[n-1] == '\n') {
		n--
	}

	if n == 0 {
		return "", fmt.Errorf("line is blank")
	}

	return line[:n] + "\r\n", nil
}

// parsePrefix parses out the prefix portion of a string.
//
// line begins with : and ends with \n.
//
// If there is no error we return the prefix and the position after the
// SPACE, which in a well formed message is the first character of the
// command.
//
// We are parsing this:
// message    =  [ ":" prefix SPACE ] command [ params ] crlf
// prefix     =  servername / ( nickname [ [ "!" user ] "@" host ] )
//
// The prefix is opaque to us beyond the character restrictions.
func parsePrefix(line string) (string, int, error) {
	pos := 0

	if line[pos] != ':' {
		return "", -1, fmt.Errorf("line does not start with ':'")
	}

	for pos < len(line) {
		// Prefix ends with a space.
		if line[pos] == ' ' {
			break
		}

		if line[pos] == '\x00' || line[pos] == '\n' || line[pos] == '\r' {
			return "", -1, fmt.Errorf("invalid character found: %q", line[pos])
		}

		pos++
	}

	// We didn't find a space.
	if pos == len(line) {
		return "", -1, fmt.Errorf("no space found")
	}

	// Ensure we have at least one character in the prefix.
	if pos == 1 {
		return "", -1, fmt.Errorf("prefix is zero length")
	}

	// Return the prefix without the space. New index is after the space.
	return line[1:pos], pos + 1, nil
}

// parseCommand parses the command portion of a message.
//
// We start parsing at the given index in the string and return the command
// portion and the index just after it.
//
// ABNF:
// command    =  1*letter / 3digit
func parseCommand(line string, index int) (string, int, error) {
	newIndex := index

	for newIndex < len(line) {
		c := line[newIndex]

		if c >= '0' && c <= '9' {
			newIndex++
			continue
		}

		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			newIndex++
			continue
		}

		// Must be a space or CR.
		if c != ' ' && c != '\r' {
			return "", -1, fmt.Errorf("unexpected character after command: %q", c)
		}
		break
	}

	if newIndex == index {
		return "", -1, fmt.Errorf("zero length command found")
	}

	// Commands are matched case insensitively, so normalize here. New index
	// is at the CR or space.
	return strings.ToUpper(line[index:newIndex]), newIndex, nil
}

// parseParams parses the params part of a message.
//
// The given index points at the first character of the params, if there
// are any. It is valid for there to be none.
//
// We return each param (stripped of : in the case of the trailing one) and
// the index after the params end.
//
// params     =  *14( SPACE middle ) [ SPACE ":" trailing ]
//            =/ 14( SPACE middle ) [ SPACE [ ":" ] trailing ]
func parseParams(line string, index int) ([]string, int, error) {
	newIndex := index
	var params []string

	for newIndex < len(line) {
		if line[newIndex] != ' ' {
			return params, newIndex, nil
		}

		// Once fourteen middles have been consumed, the ':' introducing the
		// trailing parameter is optional (second form of the grammar).
		if len(params) == 14 {
			param, paramIndex := parseFinalParam(line, newIndex)
			newIndex = paramIndex
			params = append(params, param)
			continue
		}

		param, paramIndex, err := parseParam(line, newIndex)
		if err != nil {
			// It is common in the wild (ratbox, quassel) for there to be
			// trailing space characters before the CRLF. Permit this despite
			// it arguably being invalid, and consume them.
			if err == errEmptyParam {
				crIndex := isTrailingSpace(line, newIndex)
				if crIndex != -1 {
					return params, crIndex, nil
				}
			}

			return nil, -1, fmt.Errorf("problem parsing parameter: %s", err)
		}

		newIndex = paramIndex
		params = append(params, param)
	}

	return nil, -1, fmt.Errorf("malformed params, not terminated properly")
}

// parseParam parses out a single parameter term.
//
// index points to a space.
//
// We return the parameter (stripped of : in the case of the trailing one)
// and the index after the parameter ends.
func parseParam(line string, index int) (string, int, error) {
	newIndex := index

	if line[newIndex] != ' ' {
		return "", -1, fmt.Errorf("malformed param, no leading space")
	}

	newIndex++

	if len(line) == newIndex {
		return "", -1, fmt.Errorf("malformed param, end of string after space")
	}

	// SPACE ":" trailing
	if line[newIndex] == ':' {
		newIndex++

		if len(line) == newIndex {
			return "", -1, fmt.Errorf("malformed param, end of string after ':'")
		}

		// It is valid for there to be no characters:
		// trailing   =  *( ":" / " " / nospcrlfcl )
		paramIndexStart := newIndex

		for newIndex < len(line) {
			if line[newIndex] == '\x00' || line[newIndex] == '\r' ||
				line[newIndex] == '\n' {
				break
			}
			newIndex++
		}

		return line[paramIndexStart:newIndex], newIndex, nil
	}

	// We're parsing a <middle>: any character except NUL, CR, or LF. A
	// space means we're at the end of the param.
	paramIndexStart := newIndex

	for newIndex < len(line) {
		if line[newIndex] == '\x00' || line[newIndex] == '\r' ||
			line[newIndex] == '\n' || line[newIndex] == ' ' {
			break
		}
		newIndex++
	}

	// A middle must have at least one character.
	if paramIndexStart == newIndex {
		return "", -1, errEmptyParam
	}

	return line[paramIndexStart:newIndex], newIndex, nil
}

// parseFinalParam parses the fifteenth parameter, after fourteen middles
// have been consumed. Spaces no longer separate and the ':' prefix, if
// present, is stripped. The parameter runs to the end of the line and may
// be empty.
//
// index points to a space. We return the parameter and the index after it
// (at the CR in a well formed message).
func parseFinalParam(line string, index int) (string, int) {
	newIndex := index + 1

	if newIndex < len(line) && line[newIndex] == ':' {
		newIndex++
	}

	paramIndexStart := newIndex

	for newIndex < len(line) {
		if line[newIndex] == '\x00' || line[newIndex] == '\r' ||
			line[newIndex] == '\n' {
			break
		}
		newIndex++
	}

	return line[paramIndexStart:newIndex], newIndex
}

// If the string from the given position to the end contains nothing but
// spaces until we reach CRLF, return the position of the CR.
//
// This is so we can recognize stray trailing spaces and discard them. They
// are arguably invalid, but we want to be liberal in what we accept.
func isTrailingSpace(line string, index int) int {
	for i := index; i < len(line); i++ {
		if line[i] == ' ' {
			continue
		}

		if line[i] == '\r' {
			return i
		}

		return -1
	}

	// We didn't hit \r. Line was all spaces.
	return -1
}
