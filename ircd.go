package main

import (
	"net"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
)

func main() {
	args, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	setupLog(args.Debug)

	cfg, err := checkAndParseConfig(args.ConfigFile)
	if err != nil {
		log.Fatalf("Configuration problem: %s", err)
	}

	if args.Listen != "" {
		// getArgs validated the format.
		host, port, _ := net.SplitHostPort(args.Listen)
		cfg.ListenHost = host
		cfg.ListenPort = port
	}

	server := newServer(cfg)
	if err := server.start(); err != nil {
		log.Fatal(err)
	}
}

// setupLog configures the process wide logger. Debug turns on per line
// logging of everything read from and written to every client.
func setupLog(debug bool) {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		FieldsOrder:     []string{"client", "nick", "address", "ip"},
		TimestampFormat: time.RFC3339,
	})

	if debug {
		log.SetLevel(log.DebugLevel)
	}
}
