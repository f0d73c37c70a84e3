// Package mockbackend provides an in-process ZMQ_REP stand-in for the
// search backend, for testing searchapi.Client implementations.
package mockbackend

import (
	"context"
	"encoding/json"

	"github.com/go-zeromq/zmq4"
)

// Handler computes a reply for one (op, payload) request. It returns
// the raw JSON reply bytes to send back.
type Handler func(op string, payload map[string]any) []byte

// Server is a minimal ZMQ_REP loop driven by a Handler.
type Server struct {
	Endpoint string

	sock   zmq4.Socket
	cancel context.CancelFunc
	done   chan struct{}
}

// Start binds a REP socket on endpoint (e.g. "tcp://127.0.0.1:0" or an
// inproc address) and serves requests with handler until Close is
// called.
func Start(endpoint string, handler Handler) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(endpoint); err != nil {
		cancel()
		return nil, err
	}

	s := &Server{Endpoint: endpoint, sock: sock, cancel: cancel, done: make(chan struct{})}
	go s.serve(handler)
	return s, nil
}

func (s *Server) serve(handler Handler) {
	defer close(s.done)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			return
		}
		if len(msg.Frames) != 2 {
			// A REP socket must answer every request to stay usable.
			_ = s.sock.Send(zmq4.NewMsg([]byte(`{"error":"malformed request"}`)))
			continue
		}
		op := string(msg.Frames[0])
		var payload map[string]any
		_ = json.Unmarshal(msg.Frames[1], &payload)

		reply := handler(op, payload)
		_ = s.sock.Send(zmq4.NewMsg(reply))
	}
}

// Close stops the server and releases its socket.
func (s *Server) Close() error {
	s.cancel()
	err := s.sock.Close()
	<-s.done
	return err
}
