package audit

import (
	"context"
	"errors"
	"sync"
)

// recordingLogger captures events for assertions
type recordingLogger struct {
	mu     sync.Mutex
	events []*Event
	err    error
	closed bool
}

func (r *recordingLogger) Log(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingLogger) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.err
}

func (r *recordingLogger) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

var errSink = errors.New("sink unavailable")
