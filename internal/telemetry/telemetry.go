// Package telemetry defines the cooperative telemetry side-channel.
//
// Workers emit (key, value, unit) events onto a channel; the broker
// publisher stamps them with the daemon identity and hostname and
// publishes them as 5-frame messages.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
)

// Event is one telemetry line.
type Event struct {
	Key   string
	Value string
	Unit  string
}

// Duration formats a request service time. The fixed-width value keeps
// downstream column alignment.
func Duration(seconds float64) Event {
	return Event{Key: "duration", Value: fmt.Sprintf("%9.3f", seconds), Unit: "seconds"}
}

// Error reports a handled error to the telemetry stream.
func Error(msg string) Event {
	return Event{Key: "error", Value: msg, Unit: ""}
}

// Identity names the emitting process on the telemetry stream.
type Identity struct {
	Identifier string // progname/pid
	Hostname   string
}

// LocalIdentity resolves the process identity once at startup.
func LocalIdentity() Identity {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return Identity{
		Identifier: fmt.Sprintf("%s/%d", filepath.Base(os.Args[0]), os.Getpid()),
		Hostname:   hostname,
	}
}

// Frames lays the event out as the 5-frame published message.
func (e Event) Frames(id Identity) [][]byte {
	return [][]byte{
		[]byte(e.Key),
		[]byte(e.Value),
		[]byte(e.Unit),
		[]byte(id.Identifier),
		[]byte(id.Hostname),
	}
}

// String renders the event the way debug mode prints it.
func (e Event) String() string {
	if e.Unit == "" {
		return e.Key + " " + e.Value
	}
	return e.Key + " " + e.Value + " " + e.Unit
}
