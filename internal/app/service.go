package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/engine"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/selection"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/store"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

// AnnotationStore is the optional audit log of attached annotations.
type AnnotationStore interface {
	engine.AnnotationLog
	ListAnnotations(ctx context.Context, itemID string, limit int) ([]store.AnnotationRecord, error)
}

type Deps struct {
	Generator   annotation.Generator
	Drafts      draft.Store
	Persister   engine.Persister
	Annotations AnnotationStore
	// Checks are probed by the readiness endpoint, keyed by backend name.
	Checks map[string]func(context.Context) error
	Clock  schedule.Scheduler
	Retry  retry.Policy
	Logger *logger.Logger
}

// Service is the registry of mounted documents. Each document has a single
// logical writer: mutations on one document are serialized.
type Service struct {
	deps Deps
	log  *logger.Logger

	mu   sync.RWMutex
	docs map[string]*mounted
}

type mounted struct {
	mu  sync.Mutex
	doc *engine.Document
	buf *surface.Buffer
}

type MountInput struct {
	engine.Page
	Content string `json:"content"`
}

type SessionView struct {
	ID        string                `json:"id"`
	Open      bool                  `json:"open"`
	Selection selection.Selection   `json:"selection"`
	History   []annotation.Response `json:"history"`
	Aggregate string                `json:"aggregate"`
}

type DocumentView struct {
	Page       engine.Page          `json:"page"`
	State      string               `json:"state"`
	Content    string               `json:"content"`
	Length     int                  `json:"length"`
	Cursor     int                  `json:"cursor"`
	Recovered  bool                 `json:"recovered"`
	Affordance selection.Affordance `json:"affordance"`
	Session    *SessionView         `json:"session,omitempty"`
}

type AttachResult struct {
	Attachment annotation.Attachment `json:"attachment"`
	Message    string                `json:"message"`
	Document   DocumentView          `json:"document"`
}

func New(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = schedule.Real()
	}
	if deps.Drafts == nil {
		deps.Drafts = draft.NewMemoryStore()
	}
	return &Service{deps: deps, log: logger.OrNop(deps.Logger), docs: make(map[string]*mounted)}
}

// Ping runs every readiness check and returns the failures by name.
func (s *Service) Ping(ctx context.Context) map[string]error {
	failures := map[string]error{}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func (s *Service) CheckNames() []string {
	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mount creates a fresh document instance for in.ItemID. A stored draft wins
// over in.Content.
func (s *Service) Mount(ctx context.Context, in MountInput) (DocumentView, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	if in.ItemID == "" {
		return DocumentView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "itemId is required", nil)
	}

	s.mu.Lock()
	if _, exists := s.docs[in.ItemID]; exists {
		s.mu.Unlock()
		return DocumentView{}, domainError(http.StatusConflict, "ALREADY_MOUNTED", "Document is already mounted", nil)
	}
	// Reserve the id so a concurrent mount of the same item fails.
	m := &mounted{}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.docs[in.ItemID] = m
	s.mu.Unlock()

	doc, buf, err := s.build(ctx, in)
	if err != nil {
		s.mu.Lock()
		delete(s.docs, in.ItemID)
		s.mu.Unlock()
		return DocumentView{}, err
	}
	m.doc, m.buf = doc, buf
	s.log.Info("document mounted", "item_id", in.ItemID, "recovered", doc.Recovered())
	return view(doc), nil
}

func (s *Service) build(ctx context.Context, in MountInput) (*engine.Document, *surface.Buffer, error) {
	doc, err := engine.New(in.Page, engine.Deps{
		Generator: s.deps.Generator,
		Drafts:    s.deps.Drafts,
		Persister: s.deps.Persister,
		Log:       annotationLog(s.deps.Annotations),
		Clock:     s.deps.Clock,
		Retry:     s.deps.Retry,
		Logger:    s.deps.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	buf := surface.NewBuffer("")
	if _, err := doc.Mount(ctx, buf, in.Content); err != nil {
		return nil, nil, err
	}
	buf.MountComplete()
	return doc, buf, nil
}

func annotationLog(a AnnotationStore) engine.AnnotationLog {
	if a == nil {
		return nil
	}
	return a
}

func (s *Service) lookup(itemID string) (*mounted, error) {
	s.mu.RLock()
	m, ok := s.docs[itemID]
	s.mu.RUnlock()
	if !ok {
		return nil, errNotMounted
	}
	return m, nil
}

// with runs fn holding the document's writer lock.
func (s *Service) with(itemID string, fn func(m *mounted) error) error {
	m, err := s.lookup(itemID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return errNotMounted
	}
	return fn(m)
}

func (s *Service) Get(itemID string) (DocumentView, error) {
	var out DocumentView
	err := s.with(itemID, func(m *mounted) error {
		out = view(m.doc)
		return nil
	})
	return out, err
}

func (s *Service) Document(itemID string) (*engine.Document, error) {
	var doc *engine.Document
	err := s.with(itemID, func(m *mounted) error {
		doc = m.doc
		return nil
	})
	return doc, err
}

// Destroy tears the document down and forgets it. A later mount creates a
// new instance.
func (s *Service) Destroy(itemID string) error {
	err := s.with(itemID, func(m *mounted) error {
		m.doc.Destroy()
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, itemID)
	s.mu.Unlock()
	s.log.Info("document destroyed", "item_id", itemID)
	return nil
}

func (s *Service) SetContent(ctx context.Context, itemID, markup string) (DocumentView, error) {
	return s.mutate(ctx, itemID, func(m *mounted, done func(error)) {
		m.doc.Editor().SetContent(markup, done)
	})
}

func (s *Service) Insert(ctx context.Context, itemID string, offset int, markup string) (DocumentView, error) {
	if strings.TrimSpace(markup) == "" {
		return DocumentView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "html is required", nil)
	}
	return s.mutate(ctx, itemID, func(m *mounted, done func(error)) {
		m.doc.Editor().InsertAt(offset, markup, done)
	})
}

func (s *Service) SetCursor(ctx context.Context, itemID string, offset int) (DocumentView, error) {
	return s.mutate(ctx, itemID, func(m *mounted, done func(error)) {
		m.doc.Editor().SetCursor(offset, done)
	})
}

func (s *Service) mutate(ctx context.Context, itemID string, run func(m *mounted, done func(error))) (DocumentView, error) {
	var out DocumentView
	err := s.with(itemID, func(m *mounted) error {
		if err := await(ctx, func(done func(error)) { run(m, done) }); err != nil {
			return err
		}
		out = view(m.doc)
		return nil
	})
	return out, err
}

// Select is a user selection gesture on the surface.
func (s *Service) Select(itemID string, from, to int) (DocumentView, error) {
	var out DocumentView
	err := s.with(itemID, func(m *mounted) error {
		m.buf.Select(from, to)
		out = view(m.doc)
		return nil
	})
	return out, err
}

// Input is a user keystroke replacing the current selection.
func (s *Service) Input(itemID, text string) (DocumentView, error) {
	var out DocumentView
	err := s.with(itemID, func(m *mounted) error {
		if err := m.buf.Type(text); err != nil {
			return err
		}
		out = view(m.doc)
		return nil
	})
	return out, err
}

func (s *Service) OpenSession(itemID string) (SessionView, error) {
	var out SessionView
	err := s.with(itemID, func(m *mounted) error {
		sess, err := m.doc.OpenSession()
		if err != nil {
			return err
		}
		out = sessionView(sess)
		return nil
	})
	return out, err
}

func (s *Service) Session(itemID string) (SessionView, error) {
	var out SessionView
	err := s.with(itemID, func(m *mounted) error {
		sess, err := currentSession(m.doc)
		if err != nil {
			return err
		}
		out = sessionView(sess)
		return nil
	})
	return out, err
}

func (s *Service) CloseSession(itemID string) error {
	return s.with(itemID, func(m *mounted) error {
		sess, err := currentSession(m.doc)
		if err != nil {
			return err
		}
		sess.Close()
		return nil
	})
}

func (s *Service) ClearHistory(itemID string) (SessionView, error) {
	var out SessionView
	err := s.with(itemID, func(m *mounted) error {
		sess, err := currentSession(m.doc)
		if err != nil {
			return err
		}
		sess.ClearHistory()
		out = sessionView(sess)
		return nil
	})
	return out, err
}

type RequestInput struct {
	ExplanationType string `json:"explanationType"`
	Material        string `json:"material"`
	ReferenceText   string `json:"referenceText"`
	UserQuery       string `json:"userQuery"`
}

// Request runs one generation round-trip. It does not hold the writer lock
// while the call is in flight, so the session can be closed meanwhile.
func (s *Service) Request(ctx context.Context, itemID string, in RequestInput) (annotation.Response, SessionView, error) {
	t, err := annotation.ParseType(in.ExplanationType)
	if err != nil {
		return annotation.Response{}, SessionView{}, err
	}
	var sess *annotation.Session
	err = s.with(itemID, func(m *mounted) error {
		sess, err = currentSession(m.doc)
		return err
	})
	if err != nil {
		return annotation.Response{}, SessionView{}, err
	}
	resp, err := sess.Request(ctx, t, annotation.RequestOptions{
		Material:      in.Material,
		ReferenceText: in.ReferenceText,
		UserQuery:     in.UserQuery,
	})
	if err != nil {
		return annotation.Response{}, SessionView{}, err
	}
	return resp, sessionView(sess), nil
}

func (s *Service) Attach(ctx context.Context, itemID string) (AttachResult, error) {
	var out AttachResult
	err := s.with(itemID, func(m *mounted) error {
		sess, err := currentSession(m.doc)
		if err != nil {
			return err
		}
		type result struct {
			a   annotation.Attachment
			err error
		}
		ch := make(chan result, 1)
		sess.Attach(func(a annotation.Attachment, err error) { ch <- result{a, err} })
		select {
		case r := <-ch:
			if r.err != nil {
				return r.err
			}
			out = AttachResult{Attachment: r.a, Message: r.a.Message(), Document: view(m.doc)}
			return nil
		case <-ctx.Done():
			// The attach stays queued and may still land; its outcome is
			// published as an attached event.
			return fmt.Errorf("%w: %w", errAttachPending, ctx.Err())
		}
	})
	return out, err
}

func (s *Service) Save(ctx context.Context, itemID string) error {
	return s.with(itemID, func(m *mounted) error {
		return m.doc.Save(ctx)
	})
}

func (s *Service) Annotations(ctx context.Context, itemID string, limit int) ([]store.AnnotationRecord, error) {
	if _, err := s.lookup(itemID); err != nil {
		return nil, err
	}
	if s.deps.Annotations == nil {
		return []store.AnnotationRecord{}, nil
	}
	return s.deps.Annotations.ListAnnotations(ctx, itemID, limit)
}

// Close destroys every mounted document.
func (s *Service) Close() {
	s.mu.Lock()
	docs := s.docs
	s.docs = make(map[string]*mounted)
	s.mu.Unlock()
	for _, m := range docs {
		m.mu.Lock()
		if m.doc != nil {
			m.doc.Destroy()
		}
		m.mu.Unlock()
	}
}

func currentSession(doc *engine.Document) (*annotation.Session, error) {
	sess, ok := doc.Sessions().Current()
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

// await starts a callback-style operation and waits for its completion.
func await(ctx context.Context, run func(done func(error))) error {
	ch := make(chan error, 1)
	run(func(err error) { ch <- err })
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func view(doc *engine.Document) DocumentView {
	ed := doc.Editor()
	v := DocumentView{
		Page:       doc.Page(),
		State:      ed.State().String(),
		Content:    ed.Content(),
		Length:     ed.Length(),
		Cursor:     ed.Cursor(),
		Recovered:  doc.Recovered(),
		Affordance: doc.Tracker().Affordance(),
	}
	if sess, ok := doc.Sessions().Current(); ok {
		sv := sessionView(sess)
		v.Session = &sv
	}
	return v
}

func sessionView(sess *annotation.Session) SessionView {
	aggregate, err := sess.Aggregate()
	if err != nil {
		aggregate = ""
	}
	history := sess.History()
	if history == nil {
		history = []annotation.Response{}
	}
	return SessionView{
		ID:        sess.ID(),
		Open:      sess.IsOpen(),
		Selection: sess.Selection(),
		History:   history,
		Aggregate: aggregate,
	}
}
