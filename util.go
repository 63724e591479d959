package main

import "strings"

// memberNicks renders a channel membership snapshot as the space
// separated nickname list of RPL_NAMREPLY.
func memberNicks(members []*User) string {
	nicks := make([]string, 0, len(members))
	for _, member := range members {
		nicks = append(nicks, member.nick())
	}
	return strings.Join(nicks, " ")
}

// motdLines splits the configured MOTD into the lines it is served as,
// one RPL_MOTD each.
func motdLines(motd string) []string {
	return strings.Split(strings.ReplaceAll(motd, "\r\n", "\n"), "\n")
}
