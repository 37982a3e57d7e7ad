package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"strings"
	"time"

	"github.com/m-lab/go/rtx"
)

// Filename is a command-line flag holding the name of the unix domain
// socket that the client and server should agree on.
var Filename = flag.String("pinger.eventsocket", "", "The filename of the unix-domain socket on which reachability events are served.")

// Handler is implemented by anything interested in reachability events.
type Handler interface {
	Lost(ctx context.Context, timestamp time.Time, dest string, ident uint16)
	Recovered(ctx context.Context, timestamp time.Time, dest string, ident uint16)
}

// MustRun reads from socket until ctx is canceled, dispatching each
// decoded event to handler. Any error other than the connection closing
// normally is fatal.
func MustRun(ctx context.Context, socket string, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c, err := net.Dial("unix", socket)
	rtx.Must(err, "could not connect to %q", socket)
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	s := bufio.NewScanner(c)
	for s.Scan() {
		var event ProbeEvent
		rtx.Must(json.Unmarshal(s.Bytes(), &event), "could not unmarshal event")
		switch event.Event {
		case Lost:
			handler.Lost(ctx, event.Timestamp, event.Dest, event.Ident)
		case Recovered:
			handler.Recovered(ctx, event.Timestamp, event.Dest, event.Ident)
		default:
			log.Println("notify: unknown event type:", event.Event)
		}
	}

	// Reading from a socket closed locally doesn't return io.EOF; it
	// returns an unexported error. Treat it the same as a clean close.
	err = s.Err()
	if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
		err = nil
	}
	rtx.Must(err, "scanning of %q died with a non-EOF error", socket)
}
