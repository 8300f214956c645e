package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/generation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/lesson"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/store"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, req generation.Request) (string, error) {
	return "<p>" + req.GenerationType + "</p>", nil
}

type fakePersister struct {
	updates []lesson.Update
	err     error
}

func (p *fakePersister) Update(_ context.Context, u lesson.Update) error {
	p.updates = append(p.updates, u)
	return p.err
}

type fakeLog struct {
	records []store.AnnotationRecord
}

func (l *fakeLog) InsertAnnotation(_ context.Context, rec store.AnnotationRecord) error {
	l.records = append(l.records, rec)
	return nil
}

type harness struct {
	doc       *Document
	buf       *surface.Buffer
	clock     *schedule.Manual
	drafts    *draft.MemoryStore
	persister *fakePersister
	log       *fakeLog
	events    []Event
}

func newHarness(t *testing.T, initial string) *harness {
	t.Helper()
	h := &harness{
		clock:     schedule.NewManual(),
		drafts:    draft.NewMemoryStore(),
		persister: &fakePersister{},
		log:       &fakeLog{},
	}
	doc, err := New(Page{ItemID: "lesson-9", Title: "Week 3", Duration: "60", QAQFLevel: "5", Subject: "ML", CourseID: "c-2"}, Deps{
		Generator: fakeGenerator{},
		Drafts:    h.drafts,
		Persister: h.persister,
		Log:       h.log,
		Clock:     h.clock,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.doc = doc
	doc.Subscribe(func(ev Event) { h.events = append(h.events, ev) })
	h.buf = surface.NewBuffer("")
	if _, err := doc.Mount(context.Background(), h.buf, initial); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	h.buf.MountComplete()
	return h
}

func (h *harness) count(typ EventType) int {
	n := 0
	for _, ev := range h.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestEndToEndAnnotateAndSave(t *testing.T) {
	initial := "Topics in machine learning, today."
	h := newHarness(t, initial)
	if !h.doc.Editor().IsReady() {
		t.Fatal("editor not ready after mount complete")
	}

	h.buf.Select(10, 27)
	if a := h.doc.Tracker().Affordance(); !a.Visible {
		t.Fatal("affordance should be visible")
	}
	s, err := h.doc.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if s.Selection().Text != "machine learning," {
		t.Fatalf("session selection = %+v", s.Selection())
	}
	if _, err := s.Request(context.Background(), annotation.Summary, annotation.RequestOptions{}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	before := h.doc.Editor().Length()
	var att annotation.Attachment
	s.Attach(func(a annotation.Attachment, err error) {
		if err != nil {
			t.Fatalf("Attach() error = %v", err)
		}
		att = a
	})
	if h.doc.Editor().Length() != before+editor.Length(att.Block) {
		t.Fatalf("length = %d, want %d", h.doc.Editor().Length(), before+editor.Length(att.Block))
	}
	if h.doc.Tracker().Affordance().Visible {
		t.Fatal("tracker should reset after attach")
	}
	if _, ok := h.doc.Tracker().LastSelection(); ok {
		t.Fatal("last selection should be cleared after attach")
	}
	if len(h.log.records) != 1 || h.log.records[0].Method != "structured" || h.log.records[0].ItemID != "lesson-9" {
		t.Fatalf("log records = %+v", h.log.records)
	}
	if h.count(EventAttached) != 1 || h.count(EventContent) != 1 {
		t.Fatalf("events = %+v", h.events)
	}

	e, ok, _ := h.drafts.Load(context.Background(), "lesson-9")
	if !ok || e.Content != h.doc.Editor().Content() {
		t.Fatal("draft should track the annotated content")
	}

	if err := h.doc.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(h.persister.updates) != 1 {
		t.Fatalf("updates = %d", len(h.persister.updates))
	}
	u := h.persister.updates[0]
	if u.ID != "lesson-9" || u.Description != initial+att.Block || u.Fields["title"] != "Week 3" || u.Fields["duration"] != "60" {
		t.Fatalf("update = %+v", u)
	}
	if _, ok, _ := h.drafts.Load(context.Background(), "lesson-9"); ok {
		t.Fatal("draft should be deleted after a confirmed save")
	}
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, "body")
	h.buf.SetCursor(4)
	if err := h.buf.Type(" more"); err != nil {
		t.Fatal(err)
	}
	h.persister.err = lesson.ErrPersist
	if err := h.doc.Save(context.Background()); !errors.Is(err, lesson.ErrPersist) {
		t.Fatalf("Save() error = %v", err)
	}
	e, ok, _ := h.drafts.Load(context.Background(), "lesson-9")
	if !ok || e.Content != "body more" {
		t.Fatalf("draft = %+v, %v", e, ok)
	}
}

func TestMountRecoversDraft(t *testing.T) {
	drafts := draft.NewMemoryStore()
	_ = drafts.Save(context.Background(), draft.Entry{ItemID: "lesson-1", Content: "<p>unsaved</p>"})
	doc, err := New(Page{ItemID: "lesson-1"}, Deps{Drafts: drafts, Clock: schedule.NewManual()})
	if err != nil {
		t.Fatal(err)
	}
	buf := surface.NewBuffer("")
	recovered, err := doc.Mount(context.Background(), buf, "<p>server copy</p>")
	if err != nil {
		t.Fatal(err)
	}
	buf.MountComplete()
	if !recovered || !doc.Recovered() {
		t.Fatal("expected draft recovery")
	}
	if doc.Editor().Content() != "<p>unsaved</p>" {
		t.Fatalf("Content() = %q", doc.Editor().Content())
	}
}

func TestOpenSessionNeedsSelection(t *testing.T) {
	h := newHarness(t, "nothing selected")
	if _, err := h.doc.OpenSession(); !errors.Is(err, annotation.ErrValidation) {
		t.Fatalf("OpenSession() error = %v", err)
	}
}

func TestReadinessEvents(t *testing.T) {
	h := newHarness(t, "x")
	h.doc.Destroy()
	var states []string
	for _, ev := range h.events {
		if ev.Type == EventReadiness {
			states = append(states, ev.State)
		}
	}
	if strings.Join(states, ",") != "initializing,ready,destroyed" {
		t.Fatalf("states = %v", states)
	}
}

func TestSaveWithoutPersister(t *testing.T) {
	doc, _ := New(Page{ItemID: "x"}, Deps{Clock: schedule.NewManual()})
	if err := doc.Save(context.Background()); !errors.Is(err, ErrNoPersister) {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := New(Page{}, Deps{}); !errors.Is(err, annotation.ErrValidation) {
		t.Fatalf("New() without item id error = %v", err)
	}
}
