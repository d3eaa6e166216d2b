// Package trace emits Chrome Trace Event Format records describing when
// each target began and finished building, one pair of "B"/"E" events per
// dispatched target, tagged by the worker slot that ran it.
//
// The event shape and JSON-array-without-closing-bracket sink convention
// are carried over from distri's internal/trace/trace.go; the
// CPU/memory sampling goroutines that package also offered
// (/proc/stat, /proc/meminfo) have no target in a build engine and are
// dropped.
package trace

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink writes all following Event()s as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	// Start the JSON Array Format; the closing ] is optional, so we skip it.
	w.Write([]byte{'['})
}

// PendingEvent is a trace span opened by Event and closed by Done.
type PendingEvent struct {
	Name           string      `json:"name"`
	Categories     string      `json:"cat"`
	Type           string      `json:"ph"`
	ClockTimestamp uint64      `json:"ts"`
	Duration       uint64      `json:"dur"`
	Pid            uint64      `json:"pid"`
	Tid            uint64      `json:"tid"`
	Args           interface{} `json:"args,omitempty"`

	start time.Time
}

// Done closes the span, recording its duration and writing the event to
// the current sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// Event opens a complete-duration ("X") span named name on worker slot tid.
func Event(name string, tid int) *PendingEvent {
	return &PendingEvent{
		Name:           name,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
		start:          time.Now(),
	}
}

// Begin emits an instantaneous "B" event marking the start of target's
// build on worker slot tid.
func Begin(target string, tid int) {
	(&PendingEvent{
		Name:           target,
		Type:           "B",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
	}).emit()
}

// End emits the matching "E" event for a prior Begin.
func End(target string, tid int) {
	(&PendingEvent{
		Name:           target,
		Type:           "E",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(tid),
	}).emit()
}

func (pe *PendingEvent) emit() {
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}
