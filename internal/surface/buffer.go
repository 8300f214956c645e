// Package surface provides an in-memory editing surface. It stores the
// document as markup text, addresses it by rune offset and lays it out on a
// fixed monospace grid so selections have on-screen geometry.
package surface

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/editor"
)

var (
	ErrInsideMarkup = errors.New("offset falls inside a markup tag")
	ErrReadOnly     = errors.New("surface is read-only")
)

const (
	defaultCellWidth  = 8
	defaultLineHeight = 20
)

// Rect is a layout rectangle in pixels.
type Rect struct {
	Left, Top, Right, Bottom float64
}

type Option func(*Buffer)

func ReadOnly() Option {
	return func(b *Buffer) { b.readOnly = true }
}

func CellWidth(px float64) Option {
	return func(b *Buffer) {
		if px > 0 {
			b.cellWidth = px
		}
	}
}

func LineHeight(px float64) Option {
	return func(b *Buffer) {
		if px > 0 {
			b.lineHeight = px
		}
	}
}

type Buffer struct {
	mu       sync.Mutex
	text     []rune
	cursor   int
	selFrom  int
	selTo    int
	mounted  bool
	handlers editor.Handlers

	readOnly   bool
	cellWidth  float64
	lineHeight float64
}

var _ editor.Surface = (*Buffer)(nil)

func NewBuffer(content string, opts ...Option) *Buffer {
	b := &Buffer{
		text:       []rune(content),
		cellWidth:  defaultCellWidth,
		lineHeight: defaultLineHeight,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Buffer) Bind(h editor.Handlers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = h
}

// MountComplete signals that the surface finished rendering. Only the first
// call raises OnMounted.
func (b *Buffer) MountComplete() {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = true
	fn := b.handlers.OnMounted
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (b *Buffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

func (b *Buffer) IsReadOnly() bool {
	return b.readOnly
}

func (b *Buffer) Replace(content string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = []rune(content)
	b.collapseLocked(min(b.cursor, len(b.text)))
	return nil
}

func (b *Buffer) Insert(offset int, markup string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset < 0 || offset > len(b.text) {
		return errors.New("offset out of range")
	}
	if insideTag(string(b.text), offset) {
		return ErrInsideMarkup
	}
	b.spliceLocked(offset, offset, []rune(markup))
	return nil
}

func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *Buffer) SetCursor(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collapseLocked(max(0, min(offset, len(b.text))))
}

// Selection returns the current range, from <= to.
func (b *Buffer) Selection() (from, to int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selFrom, b.selTo
}

// Select is a user gesture: it moves the selection and raises
// OnSelectionChange. Reversed ranges are normalized.
func (b *Buffer) Select(from, to int) {
	if from > to {
		from, to = to, from
	}
	b.mu.Lock()
	n := len(b.text)
	b.selFrom = max(0, min(from, n))
	b.selTo = max(0, min(to, n))
	b.cursor = b.selTo
	from, to = b.selFrom, b.selTo
	fn := b.handlers.OnSelectionChange
	b.mu.Unlock()
	if fn != nil {
		fn(from, to)
	}
}

// Type is a user keystroke: it replaces the selection with text, leaves the
// cursor after it and raises OnChange, then OnSelectionChange.
func (b *Buffer) Type(text string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.mu.Lock()
	b.spliceLocked(b.selFrom, b.selTo, []rune(text))
	at := b.cursor
	onChange, onSelect := b.handlers.OnChange, b.handlers.OnSelectionChange
	b.mu.Unlock()
	if onChange != nil {
		onChange()
	}
	if onSelect != nil {
		onSelect(at, at)
	}
	return nil
}

// Bounds lays out [from, to) on the monospace grid. Rows break at '\n'. A
// range spanning rows is boxed from the left margin to its widest row.
func (b *Buffer) Bounds(from, to int) (Rect, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from > to {
		from, to = to, from
	}
	if from < 0 || to > len(b.text) || from == to {
		return Rect{}, false
	}
	rowA, colA := b.locateLocked(from)
	rowB, colB := b.locateLocked(to)
	if rowA == rowB {
		return Rect{
			Left:   float64(colA) * b.cellWidth,
			Top:    float64(rowA) * b.lineHeight,
			Right:  float64(colB) * b.cellWidth,
			Bottom: float64(rowA+1) * b.lineHeight,
		}, true
	}
	widest := 0
	lines := strings.Split(string(b.text), "\n")
	for row := rowA; row <= rowB && row < len(lines); row++ {
		widest = max(widest, utf8.RuneCountInString(lines[row]))
	}
	return Rect{
		Left:   0,
		Top:    float64(rowA) * b.lineHeight,
		Right:  float64(widest) * b.cellWidth,
		Bottom: float64(rowB+1) * b.lineHeight,
	}, true
}

func (b *Buffer) locateLocked(offset int) (row, col int) {
	for _, r := range b.text[:offset] {
		if r == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return row, col
}

func (b *Buffer) spliceLocked(from, to int, insert []rune) {
	next := make([]rune, 0, len(b.text)-(to-from)+len(insert))
	next = append(next, b.text[:from]...)
	next = append(next, insert...)
	next = append(next, b.text[to:]...)
	b.text = next
	b.collapseLocked(from + len(insert))
}

func (b *Buffer) collapseLocked(offset int) {
	b.cursor = offset
	b.selFrom = offset
	b.selTo = offset
}

// insideTag reports whether offset lies strictly between the first and last
// rune of a tag, comment or doctype token.
func insideTag(content string, offset int) bool {
	z := html.NewTokenizer(strings.NewReader(content))
	pos := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return false
		}
		width := utf8.RuneCount(z.Raw())
		start, end := pos, pos+width
		pos = end
		if start >= offset {
			return false
		}
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
			if start < offset && offset < end {
				return true
			}
		}
	}
}
