// Package selection turns raw selection signals into Selection values and
// decides when the contextual annotate affordance is shown.
package selection

import (
	"strings"
	"sync"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

// anchorLift is how far above the range the affordance is placed.
const anchorLift = 10

type Selection struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Text string `json:"text"`
}

func (s Selection) Collapsed() bool { return s.From == s.To }

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Affordance struct {
	Visible   bool      `json:"visible"`
	Anchor    Point     `json:"anchor"`
	Selection Selection `json:"selection"`
	Reengaged bool      `json:"reengaged"`
}

type Reader interface {
	Content() string
}

// Geometry reports the on-screen box of a range.
type Geometry interface {
	Bounds(from, to int) (surface.Rect, bool)
}

type Tracker struct {
	reader Reader
	geom   Geometry
	log    *logger.Logger

	mu         sync.Mutex
	last       Selection
	hasLast    bool
	cursor     int
	affordance Affordance

	listenMu     sync.Mutex
	onSelect     []func(Selection)
	onAffordance []func(Affordance)
}

// NewTracker reads text through r. g may be nil, in which case the anchor is
// the origin.
func NewTracker(r Reader, g Geometry, log *logger.Logger) *Tracker {
	return &Tracker{reader: r, geom: g, log: logger.OrNop(log)}
}

// HandleChange processes one selection-change signal.
func (t *Tracker) HandleChange(from, to int) {
	if from > to {
		from, to = to, from
	}
	if from == to {
		t.mu.Lock()
		t.cursor = from
		hidden, changed := t.hideLocked()
		t.mu.Unlock()
		if changed {
			t.emitAffordance(hidden)
		}
		return
	}

	sel := Selection{From: from, To: to, Text: editor.Slice(t.reader.Content(), from, to)}
	if strings.TrimSpace(sel.Text) == "" {
		t.mu.Lock()
		hidden, changed := t.hideLocked()
		t.mu.Unlock()
		if changed {
			t.emitAffordance(hidden)
		}
		return
	}

	anchor := t.anchor(from, to)
	t.mu.Lock()
	reengaged := t.hasLast && t.last.From == from && t.last.To == to
	t.last = sel
	t.hasLast = true
	t.affordance = Affordance{Visible: true, Anchor: anchor, Selection: sel, Reengaged: reengaged}
	shown := t.affordance
	t.mu.Unlock()

	if reengaged {
		t.log.Debug("selection re-engaged", "from", from, "to", to)
	}
	t.emitSelect(sel)
	t.emitAffordance(shown)
}

// Reset forgets the last selection and hides the affordance.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.last = Selection{}
	t.hasLast = false
	hidden, changed := t.hideLocked()
	t.mu.Unlock()
	if changed {
		t.emitAffordance(hidden)
	}
}

func (t *Tracker) LastSelection() (Selection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

func (t *Tracker) LastCursor() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

func (t *Tracker) Affordance() Affordance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.affordance
}

func (t *Tracker) OnSelect(fn func(Selection)) {
	t.listenMu.Lock()
	defer t.listenMu.Unlock()
	t.onSelect = append(t.onSelect, fn)
}

func (t *Tracker) OnAffordance(fn func(Affordance)) {
	t.listenMu.Lock()
	defer t.listenMu.Unlock()
	t.onAffordance = append(t.onAffordance, fn)
}

// anchor is the horizontal centre of the range box, lifted above its top.
func (t *Tracker) anchor(from, to int) Point {
	if t.geom == nil {
		return Point{}
	}
	r, ok := t.geom.Bounds(from, to)
	if !ok {
		return Point{}
	}
	return Point{X: (r.Left + r.Right) / 2, Y: r.Top - anchorLift}
}

func (t *Tracker) hideLocked() (Affordance, bool) {
	if !t.affordance.Visible {
		return t.affordance, false
	}
	t.affordance = Affordance{}
	return t.affordance, true
}

func (t *Tracker) emitSelect(sel Selection) {
	t.listenMu.Lock()
	listeners := append([]func(Selection){}, t.onSelect...)
	t.listenMu.Unlock()
	for _, fn := range listeners {
		fn(sel)
	}
}

func (t *Tracker) emitAffordance(a Affordance) {
	t.listenMu.Lock()
	listeners := append([]func(Affordance){}, t.onAffordance...)
	t.listenMu.Unlock()
	for _, fn := range listeners {
		fn(a)
	}
}
