package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/m-lab/go/rtx"
)

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir, err := ioutil.TempDir("", "TestNotifyServer")
	rtx.Must(err, "Could not create tempdir")
	defer os.RemoveAll(dir)

	srv := New(dir + "/probeevents.sock").(*server)
	srv.Listen()
	go srv.Serve(ctx)
	c, err := net.Dial("unix", dir+"/probeevents.sock")
	rtx.Must(err, "Could not open UNIX domain socket")

	// Busy wait until the server has registered the client.
	for {
		srv.mutex.Lock()
		length := len(srv.clients)
		srv.mutex.Unlock()
		if length > 0 {
			break
		}
	}

	srv.Lost("192.168.0.1", 7)
	r := bufio.NewScanner(c)
	if !r.Scan() {
		t.Error("Should have been able to scan until the next newline, but couldn't")
	}
	var event ProbeEvent
	rtx.Must(json.Unmarshal(r.Bytes(), &event), "Could not unmarshal")
	if event.Event != Lost || event.Dest != "192.168.0.1" || event.Ident != 7 {
		t.Error("Event was supposed to be {Lost, '192.168.0.1', 7}, not", event)
	}

	before := time.Now()
	srv.Recovered("192.168.0.1", 7)
	if !r.Scan() {
		t.Error("Should have been able to scan until the next newline, but couldn't")
	}
	rtx.Must(json.Unmarshal(r.Bytes(), &event), "Could not unmarshal")
	after := time.Now()
	if before.After(event.Timestamp) || after.Before(event.Timestamp) {
		t.Error("It should be true that", before, "<", event.Timestamp, "<", after)
	}
	event.Timestamp = time.Time{}
	if diff := deep.Equal(event, ProbeEvent{Recovered, time.Time{}, "192.168.0.1", 7}); diff != nil {
		t.Error("Event differed from expected:", diff)
	}

	// Close down the client side. The next send should cause the server
	// to remove it from the active client set.
	c.Close()

	// Verify internal error handling doesn't panic.
	srv.eventC <- nil
	srv.removeClient(nil)

	srv.Lost("192.168.0.1", 7)

	// Busy wait until the server has unregistered the client.
	for {
		srv.mutex.Lock()
		length := len(srv.clients)
		srv.mutex.Unlock()
		if length == 0 {
			break
		}
	}
	cancel()
	srv.servingWG.Wait()
}

func TestState_String(t *testing.T) {
	tests := []struct {
		want string
		s    State
	}{
		{"Lost", Lost},
		{"Recovered", Recovered},
		{"Unknown", State(3)},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.s.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := NullServer()
	rtx.Must(srv.Listen(), "Could not listen")
	rtx.Must(srv.Serve(ctx), "Could not serve")
	srv.Lost("", 0)
	srv.Recovered("", 0)
}
