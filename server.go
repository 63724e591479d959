package main

import (
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Server holds the state for a server: its configuration, the registry
// of everything the connected clients share, and the TCP listener.
type Server struct {
	config   Config
	registry *Registry

	listener net.Listener
	started  time.Time

	// Tracks the goroutine pair serving each connection.
	wg conc.WaitGroup
}

func newServer(config Config) *Server {
	return &Server{
		config:   config,
		registry: newRegistry(),
	}
}

// start opens the TCP port and serves until the listener closes. This
// is the whole life of the process: there is no graceful quiesce.
func (s *Server) start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.serve()
	return nil
}

// listen opens the TCP port. Split from serve so tests can bind port 0
// and read the chosen address back before accepting.
func (s *Server) listen() error {
	ln, err := net.Listen("tcp",
		net.JoinHostPort(s.config.ListenHost, s.config.ListenPort))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}
	s.listener = ln
	s.started = time.Now()

	log.WithField("address", ln.Addr()).Infof("akirc started as %s",
		s.config.ServerName)
	return nil
}

// serve accepts connections until the listener closes. Transient
// accept errors are logged and do not stop the server.
func (s *Server) serve() {
	id := uint64(0)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("Listener closed, no longer accepting connections")
				return
			}
			log.Errorf("Failed to accept connection: %s", err)
			continue
		}

		client := newClient(s, id, conn)

		// Handle rollover of uint64. Unlikely to happen (outside abuse) but.
		if id+1 == 0 {
			log.Fatalf("Unique ids rolled over!")
		}
		id++

		s.wg.Go(client.run)
	}
}

// stop closes the listener. Connections already being served carry on
// until their peers go away.
func (s *Server) stop() {
	if err := s.listener.Close(); err != nil {
		log.Errorf("Problem closing TCP listener: %s", err)
	}
}
