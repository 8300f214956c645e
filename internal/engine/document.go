// Package engine assembles one annotatable document: an editor facade, a
// selection tracker, an annotation session manager and the draft lifecycle,
// parameterized by the page that owns the document.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/lesson"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/selection"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/store"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/util"
)

var (
	ErrNoPersister = errors.New("no persister configured")
	ErrNotMounted  = errors.New("document surface not mounted")
)

// Page is what the surrounding CRUD page owns and passes in.
type Page struct {
	ItemID    string         `json:"itemId"`
	Title     string         `json:"title"`
	Type      string         `json:"type"`
	Duration  string         `json:"duration"`
	QAQFLevel string         `json:"qaqfLevel"`
	Subject   string         `json:"subject"`
	CourseID  string         `json:"courseId"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (p Page) scope() annotation.Scope {
	return annotation.Scope{QAQFLevel: p.QAQFLevel, Subject: p.Subject, CourseID: p.CourseID}
}

// persistFields flattens the page into the lesson update body.
func (p Page) persistFields() map[string]any {
	out := make(map[string]any, len(p.Fields)+3)
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.Title != "" {
		out["title"] = p.Title
	}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.Duration != "" {
		out["duration"] = p.Duration
	}
	return out
}

type Persister interface {
	Update(ctx context.Context, u lesson.Update) error
}

type AnnotationLog interface {
	InsertAnnotation(ctx context.Context, rec store.AnnotationRecord) error
}

// Surface is an editing surface that can also report range geometry.
type Surface interface {
	editor.Surface
	selection.Geometry
}

type Deps struct {
	Generator annotation.Generator
	Drafts    draft.Store
	Persister Persister
	Log       AnnotationLog
	Clock     schedule.Scheduler
	Retry     retry.Policy
	Logger    *logger.Logger
	Now       func() time.Time
}

type Document struct {
	page Page
	deps Deps
	log  *logger.Logger

	facade   *editor.Facade
	tracker  *selection.Tracker
	sessions *annotation.Manager

	mu        sync.Mutex
	geom      selection.Geometry
	recovered bool
	subs      map[int]func(Event)
	nextSub   int
}

func New(page Page, deps Deps) (*Document, error) {
	if page.ItemID == "" {
		return nil, &annotation.ValidationError{Message: "itemId is required"}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Drafts == nil {
		deps.Drafts = draft.NewMemoryStore()
	}
	log := logger.OrNop(deps.Logger).With("item_id", page.ItemID)
	d := &Document{page: page, deps: deps, log: log, subs: make(map[int]func(Event))}

	d.facade = editor.New(editor.Options{Clock: deps.Clock, Retry: deps.Retry, Logger: log})
	d.tracker = selection.NewTracker(d.facade, d, log)
	d.sessions = annotation.NewManager(annotation.Options{
		Editor:    d.facade,
		Generator: deps.Generator,
		Clock:     deps.Clock,
		Retry:     deps.Retry,
		Scope:     page.scope(),
		Logger:    log,
		Now:       deps.Now,
	})

	d.facade.OnStateChange(d.handleState)
	d.facade.OnSelectionChange(d.tracker.HandleChange)
	d.facade.OnChange(d.handleChange)
	d.tracker.OnSelect(func(s selection.Selection) {
		d.emit(Event{Type: EventSelection, Selection: &s})
	})
	d.tracker.OnAffordance(func(a selection.Affordance) {
		d.emit(Event{Type: EventAffordance, Affordance: &a})
	})
	d.sessions.OnAttached(d.handleAttached)
	return d, nil
}

// Mount seeds s and attaches it to the facade. A stored draft wins over
// initial; recovered reports whether one was used.
func (d *Document) Mount(ctx context.Context, s Surface, initial string) (recovered bool, err error) {
	content := initial
	entry, ok, err := d.deps.Drafts.Load(ctx, d.page.ItemID)
	if err != nil {
		d.log.Warn("draft recovery failed", "error", err)
	} else if ok {
		content = entry.Content
		recovered = true
		d.log.Info("recovered unsaved draft", "updated_at", entry.UpdatedAt)
	}
	if s.Content() != content {
		if err := s.Replace(content); err != nil {
			return false, fmt.Errorf("seed surface: %w", err)
		}
	}

	d.mu.Lock()
	d.geom = s
	d.recovered = recovered
	d.mu.Unlock()

	if err := d.facade.Mount(s); err != nil {
		return false, err
	}
	return recovered, nil
}

// Bounds delegates to the mounted surface.
func (d *Document) Bounds(from, to int) (surface.Rect, bool) {
	d.mu.Lock()
	g := d.geom
	d.mu.Unlock()
	if g == nil {
		return surface.Rect{}, false
	}
	return g.Bounds(from, to)
}

// OpenSession opens an annotation session on the last tracked selection.
func (d *Document) OpenSession() (*annotation.Session, error) {
	sel, ok := d.tracker.LastSelection()
	if !ok {
		return nil, &annotation.ValidationError{Message: "Please select some text to annotate"}
	}
	return d.sessions.Open(sel)
}

// Save persists the current content. The draft is removed only after the
// persister confirms.
func (d *Document) Save(ctx context.Context) error {
	if d.deps.Persister == nil {
		return ErrNoPersister
	}
	content := d.facade.Content()
	err := d.deps.Persister.Update(ctx, lesson.Update{
		ID:          d.page.ItemID,
		Description: content,
		Fields:      d.page.persistFields(),
	})
	if err != nil {
		return err
	}
	if err := d.deps.Drafts.Delete(ctx, d.page.ItemID); err != nil {
		d.log.Warn("draft cleanup failed", "error", err)
	}
	return nil
}

// Destroy closes any open session and tears down the facade.
func (d *Document) Destroy() {
	if s, ok := d.sessions.Current(); ok {
		s.Close()
	}
	d.facade.Destroy()
}

func (d *Document) Page() Page { return d.page }

func (d *Document) Editor() *editor.Facade { return d.facade }

func (d *Document) Tracker() *selection.Tracker { return d.tracker }

func (d *Document) Sessions() *annotation.Manager { return d.sessions }

func (d *Document) Recovered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recovered
}

func (d *Document) handleState(s editor.State) {
	d.emit(Event{Type: EventReadiness, State: s.String()})
}

func (d *Document) handleChange(c editor.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.deps.Drafts.Save(ctx, draft.Entry{ItemID: d.page.ItemID, Content: c.Content, UpdatedAt: d.deps.Now().UTC()})
	if err != nil {
		d.log.Warn("draft write failed", "error", err)
	}
	d.emit(Event{Type: EventContent, Length: c.Length, Programmatic: c.Programmatic})
}

func (d *Document) handleAttached(a annotation.Attachment) {
	d.tracker.Reset()
	if d.deps.Log != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.deps.Log.InsertAnnotation(ctx, store.AnnotationRecord{
			ID:           util.NewID("rec"),
			ItemID:       d.page.ItemID,
			SessionID:    a.SessionID,
			Method:       string(a.Method),
			From:         a.From,
			To:           a.To,
			SelectedText: a.Text,
			Block:        a.Block,
			Responses:    a.Responses,
			CreatedAt:    d.deps.Now().UTC(),
		})
		cancel()
		if err != nil {
			d.log.Warn("annotation log write failed", "error", err)
		}
	}
	d.emit(Event{Type: EventAttached, Attachment: &a})
}
