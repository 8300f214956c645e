package selection

import (
	"testing"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

type staticReader string

func (s staticReader) Content() string { return string(s) }

func TestSelectionRoundTrip(t *testing.T) {
	content := "Topics in machine learning, today."
	tr := NewTracker(staticReader(content), nil, nil)
	var got Selection
	tr.OnSelect(func(s Selection) { got = s })

	tr.HandleChange(10, 27)
	if got.Text != content[10:27] {
		t.Fatalf("Text = %q, want %q", got.Text, content[10:27])
	}
	if got.Text != "machine learning," {
		t.Fatalf("Text = %q", got.Text)
	}
	if got.From != 10 || got.To != 27 {
		t.Fatalf("range = [%d,%d)", got.From, got.To)
	}
	if a := tr.Affordance(); !a.Visible || a.Reengaged {
		t.Fatalf("affordance = %+v", a)
	}
}

func TestCollapsedHidesAffordanceAndRecordsCursor(t *testing.T) {
	tr := NewTracker(staticReader("some words here"), nil, nil)
	var events []Affordance
	tr.OnAffordance(func(a Affordance) { events = append(events, a) })

	tr.HandleChange(0, 4)
	tr.HandleChange(7, 7)
	if tr.Affordance().Visible {
		t.Fatal("affordance should be hidden")
	}
	if tr.LastCursor() != 7 {
		t.Fatalf("LastCursor() = %d", tr.LastCursor())
	}
	if len(events) != 2 || !events[0].Visible || events[1].Visible {
		t.Fatalf("events = %+v", events)
	}
	if last, ok := tr.LastSelection(); !ok || last.Text != "some" {
		t.Fatalf("LastSelection() = %+v, %v", last, ok)
	}
}

func TestBlankRangeDoesNotSurface(t *testing.T) {
	tr := NewTracker(staticReader("a     b"), nil, nil)
	selected := false
	tr.OnSelect(func(Selection) { selected = true })
	tr.HandleChange(1, 6)
	if selected || tr.Affordance().Visible {
		t.Fatal("blank selection should not surface the affordance")
	}
	if _, ok := tr.LastSelection(); ok {
		t.Fatal("blank selection should not be recorded")
	}
}

func TestSameRangeReengages(t *testing.T) {
	tr := NewTracker(staticReader("pick this text"), nil, nil)
	var events []Affordance
	tr.OnAffordance(func(a Affordance) { events = append(events, a) })

	tr.HandleChange(5, 9)
	tr.HandleChange(9, 5)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[1].Visible || !events[1].Reengaged {
		t.Fatalf("second affordance = %+v", events[1])
	}
}

func TestAnchorFromGeometry(t *testing.T) {
	buf := surface.NewBuffer("hello world", surface.CellWidth(10), surface.LineHeight(20))
	tr := NewTracker(buf, buf, nil)
	tr.HandleChange(6, 11)
	a := tr.Affordance()
	if a.Anchor != (Point{X: 85, Y: -10}) {
		t.Fatalf("Anchor = %+v", a.Anchor)
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker(staticReader("reset me"), nil, nil)
	tr.HandleChange(0, 5)
	tr.Reset()
	if tr.Affordance().Visible {
		t.Fatal("affordance visible after reset")
	}
	tr.HandleChange(0, 5)
	if tr.Affordance().Reengaged {
		t.Fatal("range after reset should not count as re-engagement")
	}
}
