package editor

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "markup untouched", input: "<p>hi</p>", want: "<p>hi</p>"},
		{name: "single paragraph", input: "hello", want: "<p>hello</p>"},
		{name: "two paragraphs", input: "first\n\nsecond", want: "<p>first</p><p>second</p>"},
		{name: "line break kept", input: "one\ntwo", want: "<p>one<br>two</p>"},
		{name: "blank segment", input: "a\n\n\n\nb", want: "<p>a</p>" + EmptyLine + "<p>b</p>"},
		{name: "escapes text", input: "x & y", want: "<p>x &amp; y</p>"},
		{name: "crlf", input: "a\r\n\r\nb", want: "<p>a</p><p>b</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasMarkup(t *testing.T) {
	if HasMarkup("plain text") {
		t.Error("plain text reported as markup")
	}
	if !HasMarkup("text <br/> more") {
		t.Error("self-closing tag not detected")
	}
	if !HasMarkup("</div>") {
		t.Error("end tag not detected")
	}
}
