package logger

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is the severity passed to a Sink.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

func (lv Level) logrus() logrus.Level {
	switch lv {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// Sink is the logging capability handed to services. It has no error
// return: a failing sink must never change the caller's outcome.
type Sink interface {
	Log(ctx context.Context, level Level, message string)
}

// Record is one message captured by a Recorder.
type Record struct {
	Level   Level
	Message string
}

// Recorder is an in-memory Sink, used by tests to assert on emitted messages.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Log implements Sink.
func (r *Recorder) Log(_ context.Context, level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Level: level, Message: message})
}

// Records returns a copy of everything logged so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Messages returns the messages logged at the given level, in order.
func (r *Recorder) Messages(level Level) []string {
	var msgs []string
	for _, rec := range r.Records() {
		if rec.Level == level {
			msgs = append(msgs, rec.Message)
		}
	}
	return msgs
}
