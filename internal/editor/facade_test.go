package editor

import (
	"errors"
	"strings"
	"testing"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
)

// fakeSurface is a plain string buffer with hooks for failure injection.
type fakeSurface struct {
	content  []rune
	cursor   int
	handlers Handlers
	insertFn func(offset int, markup string) error
}

func (s *fakeSurface) Bind(h Handlers)   { s.handlers = h }
func (s *fakeSurface) Content() string   { return string(s.content) }
func (s *fakeSurface) Len() int          { return len(s.content) }
func (s *fakeSurface) Cursor() int       { return s.cursor }
func (s *fakeSurface) SetCursor(off int) { s.cursor = off }
func (s *fakeSurface) Replace(content string) error {
	s.content = []rune(content)
	s.cursor = min(s.cursor, len(s.content))
	return nil
}
func (s *fakeSurface) Insert(offset int, markup string) error {
	if s.insertFn != nil {
		if err := s.insertFn(offset, markup); err != nil {
			return err
		}
	}
	next := append([]rune{}, s.content[:offset]...)
	next = append(next, []rune(markup)...)
	s.content = append(next, s.content[offset:]...)
	s.cursor = offset + len([]rune(markup))
	return nil
}

func (s *fakeSurface) mountComplete() { s.handlers.OnMounted() }

func newReadyFacade(t *testing.T, content string) (*Facade, *fakeSurface, *schedule.Manual) {
	t.Helper()
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	s := &fakeSurface{content: []rune(content)}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	s.mountComplete()
	if !f.IsReady() {
		t.Fatal("facade should be ready")
	}
	return f, s, clock
}

func TestReadinessLifecycle(t *testing.T) {
	f := New(Options{Clock: schedule.NewManual()})
	var states []State
	f.OnStateChange(func(s State) { states = append(states, s) })
	if f.State() != Uninitialized {
		t.Fatalf("initial state = %s", f.State())
	}
	s := &fakeSurface{}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if f.State() != Initializing || f.IsReady() {
		t.Fatalf("state after mount = %s", f.State())
	}
	s.mountComplete()
	if f.State() != Ready {
		t.Fatalf("state after mount complete = %s", f.State())
	}
	f.Destroy()
	f.Destroy()
	if f.State() != Destroyed {
		t.Fatalf("state after destroy = %s", f.State())
	}
	s.mountComplete()
	if f.State() != Destroyed {
		t.Fatal("a destroyed facade must not become ready again")
	}
	if err := f.Mount(&fakeSurface{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("remount error = %v, want ErrInvalidTransition", err)
	}
	want := []State{Initializing, Ready, Destroyed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestInsertQueuedUntilMountComplete(t *testing.T) {
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	var result error = errors.New("not called")
	f.InsertAt(0, "<p>hi</p>", func(err error) { result = err })

	s := &fakeSurface{}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	clock.Advance(retry.DefaultDelay)
	if f.Content() != "" {
		t.Fatal("insert ran before the editor was ready")
	}
	s.mountComplete()
	clock.Advance(retry.DefaultDelay)
	if result != nil {
		t.Fatalf("insert result = %v", result)
	}
	if got := f.Content(); got != "<p>hi</p>" {
		t.Fatalf("Content() = %q", got)
	}
}

func TestMutationsApplyInIssueOrder(t *testing.T) {
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	var order []string
	f.SetContent("<p>A</p>", func(err error) {
		if err != nil {
			t.Errorf("SetContent(A) error = %v", err)
		}
		order = append(order, "A")
	})

	s := &fakeSurface{}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	s.mountComplete()
	f.SetContent("<p>B</p>", func(err error) {
		if err != nil {
			t.Errorf("SetContent(B) error = %v", err)
		}
		order = append(order, "B")
	})
	clock.Advance(retry.DefaultDelay)

	if got := f.Content(); got != "<p>B</p>" {
		t.Fatalf("Content() = %q, want the later write", got)
	}
	if strings.Join(order, ",") != "A,B" {
		t.Fatalf("completion order = %v, want [A B]", order)
	}
}

func TestQueuedMutationsDrainOnMountComplete(t *testing.T) {
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	f.SetContent("<p>base</p>", nil)
	f.InsertAt(100, "<p>tail</p>", nil)

	s := &fakeSurface{}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	s.mountComplete()
	if got := f.Content(); got != "<p>base</p><p>tail</p>" {
		t.Fatalf("Content() = %q", got)
	}
}

func TestMutationFromCallbackRunsAfterQueuedOnes(t *testing.T) {
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	f.SetContent("<p>one</p>", func(error) {
		f.InsertAt(1000, "<p>three</p>", nil)
	})
	f.InsertAt(1000, "<p>two</p>", nil)

	s := &fakeSurface{}
	if err := f.Mount(s); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	s.mountComplete()
	if got := f.Content(); got != "<p>one</p><p>two</p><p>three</p>" {
		t.Fatalf("Content() = %q", got)
	}
}

func TestInsertTimesOutWhenNeverReady(t *testing.T) {
	clock := schedule.NewManual()
	f := New(Options{Clock: clock})
	var result error
	f.InsertAt(0, "<p>hi</p>", func(err error) { result = err })
	clock.Advance(10 * retry.DefaultDelay)
	if !errors.Is(result, retry.ErrReadinessTimeout) {
		t.Fatalf("result = %v, want ErrReadinessTimeout", result)
	}
	if clock.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", clock.Pending())
	}
}

func TestInsertAtGrowsDocument(t *testing.T) {
	offsets := []int{0, 3, 11}
	for _, p := range offsets {
		f, _, _ := newReadyFacade(t, "<p>abc</p>\n")
		before := f.Length()
		var result error
		f.InsertAt(p, "<em>new</em>", func(err error) { result = err })
		if result != nil {
			t.Fatalf("InsertAt(%d) error = %v", p, result)
		}
		if f.Length() < before {
			t.Fatalf("length shrank: %d -> %d", before, f.Length())
		}
		if n := strings.Count(f.Content(), "<em>new</em>"); n != 1 {
			t.Fatalf("inserted text appears %d times", n)
		}
	}
}

func TestInsertAtClampsOffset(t *testing.T) {
	f, _, _ := newReadyFacade(t, "abc")
	f.InsertAt(99, "<b>!</b>", nil)
	if got := f.Content(); got != "abc<b>!</b>" {
		t.Fatalf("Content() = %q", got)
	}
	f.InsertAt(-3, "<i>?</i>", nil)
	if got := f.Content(); got != "<i>?</i>abc<b>!</b>" {
		t.Fatalf("Content() = %q", got)
	}
}

func TestInsertAtNormalizesPlainText(t *testing.T) {
	f, _, _ := newReadyFacade(t, "")
	f.InsertAt(0, "one\n\ntwo", nil)
	if got := f.Content(); got != "<p>one</p><p>two</p>" {
		t.Fatalf("Content() = %q", got)
	}
}

func TestInsertAtReportsInsertionError(t *testing.T) {
	f, s, _ := newReadyFacade(t, "abc")
	rejected := errors.New("schema violation")
	s.insertFn = func(int, string) error { return rejected }

	var result error
	f.InsertAt(1, "<p>x</p>", func(err error) { result = err })
	var insErr *InsertionError
	if !errors.As(result, &insErr) {
		t.Fatalf("result = %v, want *InsertionError", result)
	}
	if insErr.Offset != 1 || !errors.Is(result, rejected) {
		t.Fatalf("unexpected insertion error: %+v", insErr)
	}
	if f.Content() != "abc" {
		t.Fatalf("document changed after rejection: %q", f.Content())
	}
}

func TestProgrammaticInsertRestoresCursorOnNextTick(t *testing.T) {
	f, s, clock := newReadyFacade(t, "hello world")
	f.SetCursor(5, nil)
	f.InsertAt(EndOfDocument(f.Length()), "<p>note</p>", nil)
	if s.cursor == 5 {
		t.Fatal("cursor restored synchronously, expected next tick")
	}
	clock.Flush()
	if f.Cursor() != 5 {
		t.Fatalf("Cursor() = %d, want 5", f.Cursor())
	}
}

func TestCursorRestoreClampsToNewLength(t *testing.T) {
	f, _, clock := newReadyFacade(t, "a long document body")
	f.SetCursor(18, nil)
	f.SetContent("short", nil)
	clock.Flush()
	if f.Cursor() != 5 {
		t.Fatalf("Cursor() = %d, want 5", f.Cursor())
	}
}

func TestSetCursorClamps(t *testing.T) {
	f, _, _ := newReadyFacade(t, strings.Repeat("x", 50))
	f.SetCursor(9999, nil)
	if f.Cursor() != 50 {
		t.Fatalf("Cursor() = %d, want 50", f.Cursor())
	}
	f.SetCursor(-7, nil)
	if f.Cursor() != 0 {
		t.Fatalf("Cursor() = %d, want 0", f.Cursor())
	}
}

func TestChangesArePublished(t *testing.T) {
	f, s, _ := newReadyFacade(t, "abc")
	var changes []Change
	f.OnChange(func(c Change) { changes = append(changes, c) })

	f.SetContent("<p>x</p>", nil)
	s.content = append(s.content, 'y')
	s.handlers.OnChange()

	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	if !changes[0].Programmatic || changes[0].Content != "<p>x</p>" || changes[0].Length != 8 {
		t.Fatalf("first change = %+v", changes[0])
	}
	if changes[1].Programmatic || changes[1].Content != "<p>x</p>y" {
		t.Fatalf("second change = %+v", changes[1])
	}
	if f.Length() != 9 {
		t.Fatalf("Length() = %d, want 9", f.Length())
	}
}

func TestSelectionSignalsAreRelayed(t *testing.T) {
	f, s, _ := newReadyFacade(t, "abc")
	var got [2]int
	f.OnSelectionChange(func(from, to int) { got = [2]int{from, to} })
	s.handlers.OnSelectionChange(1, 3)
	if got != [2]int{1, 3} {
		t.Fatalf("relayed selection = %v", got)
	}
}
