package annotation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/generation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/selection"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/util"
)

// Generator produces content for one request.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

type Options struct {
	Editor    editor.Editor
	Generator Generator
	Clock     schedule.Scheduler
	Retry     retry.Policy
	Scope     Scope
	Logger    *logger.Logger
	Now       func() time.Time
}

// Manager enforces the single open session per document.
type Manager struct {
	editor editor.Editor
	gen    Generator
	retry  *retry.Scheduler
	scope  Scope
	log    *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	current    *Session
	onAttached []func(Attachment)
}

func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		editor: opts.Editor,
		gen:    opts.Generator,
		retry:  retry.New(opts.Clock, opts.Retry),
		scope:  opts.Scope,
		log:    logger.OrNop(opts.Logger),
		now:    now,
	}
}

// Open starts a session for sel. It fails while another session is open or
// when the selected text is blank.
func (m *Manager) Open(sel selection.Selection) (*Session, error) {
	if strings.TrimSpace(sel.Text) == "" {
		return nil, &ValidationError{Message: "Please select some text to annotate"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, &ValidationError{Message: "An annotation session is already open"}
	}
	s := &Session{id: util.NewID("ann"), mgr: m, sel: sel, open: true}
	m.current = s
	m.log.Debug("annotation session opened", "session_id", s.id, "from", sel.From, "to", sel.To)
	return s, nil
}

// Current returns the open session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// OnAttached registers fn to run after every successful attach.
func (m *Manager) OnAttached(fn func(Attachment)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAttached = append(m.onAttached, fn)
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}

func (m *Manager) attached(a Attachment) {
	m.mu.Lock()
	listeners := append([]func(Attachment){}, m.onAttached...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(a)
	}
}

type Session struct {
	id  string
	mgr *Manager

	mu        sync.Mutex
	sel       selection.Selection
	open      bool
	attaching bool
	history   []Response
}

func (s *Session) ID() string { return s.id }

func (s *Session) Selection() selection.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// BuildRequest derives the outgoing request for t from the selection and
// opts. Material falls back to the reference text, then to the selection.
func (s *Session) BuildRequest(t ExplanationType, opts RequestOptions) Request {
	s.mu.Lock()
	text := s.sel.Text
	s.mu.Unlock()

	reference := firstNonBlank(opts.ReferenceText, text)
	query := strings.TrimSpace(opts.UserQuery)
	if query == "" {
		query = fmt.Sprintf("Please %s this text: %s", t, text)
	}
	return Request{
		ExplanationType: t,
		Material:        firstNonBlank(opts.Material, reference),
		ReferenceText:   reference,
		UserQuery:       query,
	}
}

// Request asks the generator for one response and appends it to the history.
// Failures leave the history unchanged. If the session closes while the
// call is in flight the response is dropped and ErrSessionClosed returned.
func (s *Session) Request(ctx context.Context, t ExplanationType, opts RequestOptions) (Response, error) {
	if !t.Valid() {
		return Response{}, &ValidationError{Message: fmt.Sprintf("unknown explanation type %q", t), Err: ErrUnknownType}
	}
	if !s.IsOpen() {
		return Response{}, ErrSessionClosed
	}
	req := s.BuildRequest(t, opts)
	scope := s.mgr.scope
	content, err := s.mgr.gen.Generate(ctx, generation.Request{
		GenerationType: t.GenerationType(),
		Material:       req.Material,
		QAQFLevel:      scope.QAQFLevel,
		Subject:        scope.Subject,
		UserQuery:      req.UserQuery,
		CourseID:       scope.CourseID,
	})
	if err != nil {
		s.mgr.log.Warn("annotation request failed", "session_id", s.id, "type", t, "error", err)
		return Response{}, err
	}

	resp := Response{ExplanationType: t, Content: content, Timestamp: s.mgr.now().UnixMilli()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		s.mgr.log.Debug("late response discarded", "session_id", s.id, "type", t)
		return Response{}, ErrSessionClosed
	}
	s.history = append(s.history, resp)
	return resp, nil
}

// History returns the responses in insertion order.
func (s *Session) History() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Response(nil), s.history...)
}

// Aggregate renders the history newest first.
func (s *Session) Aggregate() (string, error) {
	return renderAggregate(s.History())
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Close discards the history and releases the manager lock. It is
// idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.history = nil
	s.sel = selection.Selection{}
	s.mu.Unlock()
	if wasOpen {
		s.mgr.release(s)
		s.mgr.log.Debug("annotation session closed", "session_id", s.id)
	}
}

// Attach inserts the formatted block at the end of the document. When the
// editor is not ready the attempt waits on the readiness retry first; a
// readiness timeout or a rejected insert falls back to appending the block to
// the content string and writing it back. A successful attach closes the
// session. done receives the result and may be nil.
func (s *Session) Attach(done func(Attachment, error)) {
	finish := func(a Attachment, err error) {
		if done != nil {
			done(a, err)
		}
	}

	s.mu.Lock()
	switch {
	case !s.open:
		s.mu.Unlock()
		finish(Attachment{}, ErrSessionClosed)
		return
	case s.attaching:
		s.mu.Unlock()
		finish(Attachment{}, &ValidationError{Message: "An attach is already in progress"})
		return
	case len(s.history) == 0:
		s.mu.Unlock()
		finish(Attachment{}, &ValidationError{Message: "Nothing to attach yet, request an annotation first"})
		return
	}
	s.attaching = true
	history := append([]Response(nil), s.history...)
	sel := s.sel
	s.mu.Unlock()

	aggregate, err := renderAggregate(history)
	if err == nil {
		aggregate, err = renderBlock(sel.Text, aggregate)
	}
	if err != nil {
		s.endAttach()
		finish(Attachment{}, fmt.Errorf("render annotation block: %w", err))
		return
	}
	block := aggregate
	base := Attachment{SessionID: s.id, Block: block, Responses: len(history), From: sel.From, To: sel.To, Text: sel.Text}
	ed := s.mgr.editor

	fallback := func(cause error) {
		prev := ed.Content()
		s.mgr.log.Warn("structured insert failed, appending", "session_id", s.id, "error", cause)
		ed.SetContent(prev+block, func(err error) {
			if err != nil {
				s.mgr.log.Error("annotation fallback failed", "session_id", s.id, "error", err)
				s.endAttach()
				finish(Attachment{}, err)
				return
			}
			a := base
			a.Method = Fallback
			a.Offset = editor.Length(prev)
			s.complete(a)
			finish(a, nil)
		})
	}

	s.mgr.retry.EnsureReady(ed.IsReady, func() {
		offset := editor.EndOfDocument(editor.Length(ed.Content()))
		ed.InsertAt(offset, block, func(err error) {
			if err != nil {
				fallback(err)
				return
			}
			a := base
			a.Method = Structured
			a.Offset = offset
			s.complete(a)
			finish(a, nil)
		})
	}, fallback)
}

func (s *Session) endAttach() {
	s.mu.Lock()
	s.attaching = false
	s.mu.Unlock()
}

func (s *Session) complete(a Attachment) {
	s.endAttach()
	s.Close()
	s.mgr.log.Info("annotation attached", "session_id", s.id, "method", a.Method, "responses", a.Responses)
	s.mgr.attached(a)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
