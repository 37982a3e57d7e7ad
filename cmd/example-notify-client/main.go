// example-notify-client is a minimal reference implementation of a
// pinger daemon reachability-event client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/zzping/pinger/notify"
)

var (
	mainCtx, mainCancel = context.WithCancel(context.Background())
)

// event is a reachability change queued for processing.
type event struct {
	timestamp time.Time
	dest      string
	ident     uint16
}

// handler implements the notify.Handler interface.
type handler struct {
	events chan event
}

// Lost is called synchronously by notify.MustRun, and blocks, for every loss event.
func (h *handler) Lost(ctx context.Context, timestamp time.Time, dest string, ident uint16) {
	log.Println("lost", dest, ident, timestamp)
	h.events <- event{timestamp: timestamp, dest: dest, ident: ident}
}

// Recovered is called single-threaded and blocking for every matched reply.
func (h *handler) Recovered(ctx context.Context, timestamp time.Time, dest string, ident uint16) {
	log.Println("recovered", dest, ident, timestamp)
}

// ProcessLostEvents reads and processes events received by the Lost handler.
func (h *handler) ProcessLostEvents(ctx context.Context) {
	for {
		select {
		case e := <-h.events:
			log.Println("processing", e)
		case <-ctx.Done():
			log.Println("shutdown")
			return
		}
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *notify.Filename == "" {
		panic("-pinger.eventsocket path is required")
	}

	h := &handler{events: make(chan event)}

	// Process events received by the Lost handler. The goroutine will
	// block until a loss event occurs.
	go h.ProcessLostEvents(mainCtx)

	// Begin listening on the event socket for new events, and dispatch
	// them to the given handler.
	go notify.MustRun(mainCtx, *notify.Filename, h)

	<-mainCtx.Done()
	fmt.Println("ok")
}
