package main

import (
	"flag"
	"net"
	"path/filepath"

	"github.com/pkg/errors"
)

// Args are command line arguments.
type Args struct {
	ConfigFile string
	Listen     string
	Debug      bool
}

func getArgs() (Args, error) {
	configFile := flag.String("conf", "", "Configuration file (optional).")
	listen := flag.String("listen", "",
		"Listen address (host:port). Overrides the configuration.")
	debug := flag.Bool("debug", false, "Enable debug logging.")

	flag.Parse()

	args := Args{Listen: *listen, Debug: *debug}

	if *configFile != "" {
		configPath, err := filepath.Abs(*configFile)
		if err != nil {
			return Args{}, errors.WithMessagef(err,
				"unable to determine absolute path to config file: %s", *configFile)
		}
		args.ConfigFile = configPath
	}

	if *listen != "" {
		if _, _, err := net.SplitHostPort(*listen); err != nil {
			return Args{}, errors.WithMessagef(err, "invalid listen address: %s",
				*listen)
		}
	}

	return args, nil
}
