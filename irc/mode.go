package irc

import "strings"

// ModeChange is one flag toggle scanned out of a MODE modestring.
type ModeChange struct {
	Add  bool
	Char byte

	// Arg is the parameter paired with the flag, for flags that take one.
	Arg string
}

// ParseModeString scans a modestring. '+' and '-' switch the sign and
// every other character becomes a flag under the current sign (add, until
// told otherwise). Flags listed in takesArg consume one argument each,
// pairing left to right with args.
//
// Unknown flags are not rejected here. What a flag means, and whether it
// is known at all, depends on the target; the handlers decide that.
func ParseModeString(modestring string, args []string, takesArg string) []ModeChange {
	var changes []ModeChange

	add := true
	argIndex := 0

	for i := 0; i < len(modestring); i++ {
		c := modestring[i]

		if c == '+' {
			add = true
			continue
		}
		if c == '-' {
			add = false
			continue
		}

		change := ModeChange{Add: add, Char: c}

		if strings.IndexByte(takesArg, c) != -1 && argIndex < len(args) {
			change.Arg = args[argIndex]
			argIndex++
		}

		changes = append(changes, change)
	}

	return changes
}
