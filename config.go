package main

import (
	"strconv"

	"github.com/horgh/config"
	"github.com/pkg/errors"
)

// Server identity and limits. These are fixed at build time. The few
// settings an operator may reasonably want to change live in Config.
const (
	defaultListenHost = "0.0.0.0"
	defaultListenPort = "6667"
	defaultServerName = "akiRC.chat"
	defaultMOTD       = "<3"

	serverVersion = "akiRC_0.3.0"
	networkName   = "akiRC"

	// Mode letters we support. All are type D (no parameters).
	userModes              = "i"
	channelModes           = "s"
	channelModesWithParams = ""

	// Capacity of each client's outbound message queue. Messages to a
	// client whose queue is full are dropped.
	outboundQueueSize = 100
)

// Config holds a server's configuration.
type Config struct {
	ListenHost string
	ListenPort string
	ServerName string
	MOTD       string
}

// defaultConfig returns the configuration we run with when no config file
// is given.
func defaultConfig() Config {
	return Config{
		ListenHost: defaultListenHost,
		ListenPort: defaultListenPort,
		ServerName: defaultServerName,
		MOTD:       defaultMOTD,
	}
}

// checkAndParseConfig loads the config file and applies it on top of the
// defaults. Every key is optional.
//
// Keys: listen-host, listen-port, server-name, motd. A blank motd is
// meaningful (clients are told there is no MOTD). Blank values for the
// other keys are rejected.
func checkAndParseConfig(file string) (Config, error) {
	cfg := defaultConfig()
	if file == "" {
		return cfg, nil
	}

	configMap, err := config.ReadStringMap(file)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "unable to read config: %s", file)
	}

	if v, ok := configMap["listen-host"]; ok {
		if v == "" {
			return Config{}, errors.New("listen-host is blank")
		}
		cfg.ListenHost = v
	}

	if v, ok := configMap["listen-port"]; ok {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return Config{}, errors.WithMessagef(err, "listen-port is not valid: %s", v)
		}
		cfg.ListenPort = v
	}

	if v, ok := configMap["server-name"]; ok {
		if v == "" {
			return Config{}, errors.New("server-name is blank")
		}
		cfg.ServerName = v
	}

	if v, ok := configMap["motd"]; ok {
		cfg.MOTD = v
	}

	return cfg, nil
}
