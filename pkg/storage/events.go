package storage

import "time"

// Op names the kind of change an Event reports.
type Op string

const (
	OpWrite   Op = "write"
	OpDelete  Op = "delete"
	OpSetting Op = "setting"
)

// Event describes a committed change. Size is the stored value length for
// writes and settings, zero for deletes.
type Event struct {
	Op   Op
	Key  string
	Size int
	At   time.Time
}

// Observer is notified after each committed change.
type Observer interface {
	HandleStorageEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleStorageEvent(e Event) { f(e) }
