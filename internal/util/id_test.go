package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	a := NewID("ann")
	b := NewID("ann")
	if a == b {
		t.Fatal("ids should be unique")
	}
	if !strings.HasPrefix(a, "ann_") || len(a) != len("ann_")+32 {
		t.Fatalf("NewID() = %q", a)
	}
	if plain := NewID(""); len(plain) != 32 || strings.Contains(plain, "_") {
		t.Fatalf("NewID(\"\") = %q", plain)
	}
}
