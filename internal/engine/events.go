package engine

import (
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/selection"
)

type EventType string

const (
	EventReadiness  EventType = "readiness"
	EventSelection  EventType = "selection"
	EventAffordance EventType = "affordance"
	EventContent    EventType = "content"
	EventAttached   EventType = "attached"
)

type Event struct {
	Type         EventType              `json:"type"`
	ItemID       string                 `json:"itemId"`
	At           time.Time              `json:"at"`
	State        string                 `json:"state,omitempty"`
	Selection    *selection.Selection   `json:"selection,omitempty"`
	Affordance   *selection.Affordance  `json:"affordance,omitempty"`
	Length       int                    `json:"length,omitempty"`
	Programmatic bool                   `json:"programmatic,omitempty"`
	Attachment   *annotation.Attachment `json:"attachment,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// Subscribe registers fn for every event. The returned func unregisters it.
func (d *Document) Subscribe(fn func(Event)) (cancel func()) {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *Document) emit(ev Event) {
	ev.ItemID = d.page.ItemID
	ev.At = d.deps.Now().UTC()
	if ev.Attachment != nil {
		ev.Message = ev.Attachment.Message()
	}
	d.mu.Lock()
	subs := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
