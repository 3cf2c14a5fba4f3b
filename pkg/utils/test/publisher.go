package testutils

import (
	"context"
	"sync"

	"github.com/reveriehq/engram/pkg/eventstream"
)

// RecordingPublisher is an eventstream.Publisher that captures every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.Event
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, event *eventstream.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error {
	return nil
}

// Events returns a snapshot of everything published so far.
func (p *RecordingPublisher) Events() []*eventstream.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOfType filters the captured events by type.
func (p *RecordingPublisher) EventsOfType(eventType string) []*eventstream.Event {
	var out []*eventstream.Event
	for _, e := range p.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ eventstream.Publisher = (*RecordingPublisher)(nil)
