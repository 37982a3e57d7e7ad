// Package notify serves destination reachability changes over a unix
// domain socket, so that other local processes can watch a pinger
// daemon's probe results without polling the UDP stats feed or parsing
// frame logs.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// State is the kind of reachability change that occurred for a destination.
type State int

const (
	// Lost is sent when a sent packet ages out of the inflight queue
	// without a matching reply.
	Lost = State(iota)
	// Recovered is sent when a reply is matched to an in-flight probe.
	Recovered
)

func (s State) String() string {
	switch s {
	case Lost:
		return "Lost"
	case Recovered:
		return "Recovered"
	default:
		return "Unknown"
	}
}

// ProbeEvent is the data sent down the socket in JSONL form to clients.
type ProbeEvent struct {
	Event     State
	Timestamp time.Time
	Dest      string
	Ident     uint16
}

// Server is the interface with the methods that serve reachability
// events over the unix domain socket. Create one with notify.New, or
// use notify.NullServer when no socket is configured.
type Server interface {
	Listen() error
	Serve(context.Context) error
	Lost(dest string, ident uint16)
	Recovered(dest string, ident uint16)
}

type server struct {
	eventC       chan *ProbeEvent
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mutex        sync.Mutex
	servingWG    sync.WaitGroup
}

func (s *server) addClient(c net.Conn) {
	log.Println("notify: adding client", c)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clients[c] = struct{}{}
}

func (s *server) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
}

func (s *server) sendToAllListeners(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for c := range s.clients {
		if _, err := fmt.Fprintln(c, data); err != nil {
			log.Println("notify: write to client", c, "failed:", err, "- removing")
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *server) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		event := <-s.eventC
		if event == nil {
			continue
		}
		b, err := json.Marshal(*event)
		if err != nil {
			log.Println("notify: could not marshal event", event, err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen returns quickly. Connections to the server will not succeed
// until Serve is also called. Call this once per Server.
func (s *server) Listen() error {
	s.servingWG.Add(1)
	// Remove a stale socket file left behind by an unclean shutdown.
	os.Remove(s.filename)
	var err error
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve accepts clients and forwards events to them until ctx is
// canceled. Call this in a goroutine, once, after Listen.
func (s *server) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1)
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		close(s.eventC)
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			log.Printf("notify: accept on %q failed: %s\n", s.filename, err)
			continue
		}
		s.addClient(conn)
	}
	return err
}

// Lost reports that a sent packet aged out of the inflight queue
// without a matching reply.
func (s *server) Lost(dest string, ident uint16) {
	s.eventC <- &ProbeEvent{Event: Lost, Timestamp: time.Now(), Dest: dest, Ident: ident}
}

// Recovered reports that a reply was matched to an in-flight probe.
func (s *server) Recovered(dest string, ident uint16) {
	s.eventC <- &ProbeEvent{Event: Recovered, Timestamp: time.Now(), Dest: dest, Ident: ident}
}

// New makes a Server that serves clients on the given unix domain socket.
func New(filename string) Server {
	return &server{
		filename: filename,
		eventC:   make(chan *ProbeEvent, 100),
		clients:  make(map[net.Conn]struct{}),
	}
}

type nullServer struct{}

func (nullServer) Listen() error                       { return nil }
func (nullServer) Serve(context.Context) error         { return nil }
func (nullServer) Lost(dest string, ident uint16)      {}
func (nullServer) Recovered(dest string, ident uint16) {}

// NullServer returns a Server that does nothing, so callers that may or
// may not have a socket configured don't need a nil check.
func NullServer() Server {
	return nullServer{}
}
