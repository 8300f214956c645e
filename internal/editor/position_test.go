package editor

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name           string
		offset, length int
		want           int
	}{
		{name: "inside", offset: 3, length: 10, want: 3},
		{name: "negative", offset: -4, length: 10, want: 0},
		{name: "past end", offset: 9999, length: 50, want: 50},
		{name: "at end", offset: 50, length: 50, want: 50},
		{name: "empty document", offset: 2, length: 0, want: 0},
		{name: "negative length", offset: 2, length: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.offset, tt.length); got != tt.want {
				t.Errorf("Clamp(%d, %d) = %d, want %d", tt.offset, tt.length, got, tt.want)
			}
		})
	}
}

func TestEndOfDocument(t *testing.T) {
	if got := EndOfDocument(42); got != 42 {
		t.Fatalf("EndOfDocument(42) = %d", got)
	}
	if got := EndOfDocument(-1); got != 0 {
		t.Fatalf("EndOfDocument(-1) = %d", got)
	}
}

func TestLengthCountsRunes(t *testing.T) {
	if got := Length("héllo"); got != 5 {
		t.Fatalf("Length() = %d, want 5", got)
	}
}

func TestSlice(t *testing.T) {
	content := "We study machine learning today"
	if got := Slice(content, 9, 25); got != "machine learning" {
		t.Fatalf("Slice() = %q", got)
	}
	if got := Slice(content, 25, 9); got != "machine learning" {
		t.Fatalf("reversed Slice() = %q", got)
	}
	if got := Slice(content, -5, 2); got != "We" {
		t.Fatalf("clamped Slice() = %q", got)
	}
}
