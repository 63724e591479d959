package main

import (
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

// How long we're willing to spend on a reverse DNS query before giving up
// and showing the client by IP.
const lookupTimeout = 5 * time.Second

const resolvConf = "/etc/resolv.conf"

// lookupHostname finds the hostname to show a client connecting from ip.
//
// We ask the system's resolvers for the PTR record. If there is none, or
// the lookup fails for any reason, we fall back to the IP address in
// string form. Registration proceeds either way.
func lookupHostname(ip net.IP) string {
	// Loopback peers keep the literal address. What the local stub
	// resolver calls 127.0.0.1 varies and none of the answers are
	// interesting.
	if ip.IsLoopback() {
		return ip.String()
	}

	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		log.WithField("ip", ip).Warnf("Unable to build reverse DNS name: %s", err)
		return ip.String()
	}

	conf, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(conf.Servers) == 0 {
		log.WithField("ip", ip).Warn("No resolvers available, using IP as hostname")
		return ip.String()
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)

	client := &dns.Client{Timeout: lookupTimeout}

	for _, server := range conf.Servers {
		in, _, err := client.Exchange(m, net.JoinHostPort(server, conf.Port))
		if err != nil {
			log.WithField("ip", ip).Debugf("Reverse DNS query to %s failed: %s",
				server, err)
			continue
		}

		for _, answer := range in.Answer {
			if ptr, ok := answer.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, ".")
			}
		}

		// The resolver answered and there's no PTR. No point asking the
		// next one.
		break
	}

	log.WithField("ip", ip).Warn("No reverse DNS record, using IP as hostname")
	return ip.String()
}
