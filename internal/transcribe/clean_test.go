package transcribe

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello world", "Hello world"},
		{"leading page number", "42\nChapter One\n", "Chapter One"},
		{"leading page number with blank lines", "  17  \n\n\nText", "Text"},
		{"number inside text kept", "Text\n42\nMore", "Text\n42\nMore"},
		{"trims lines", "  a  \n\t b\t", "a\nb"},
		{"drops blank lines", "a\n\n\n  \nb", "a\nb"},
		{"only whitespace", " \n\t\n", ""},
		{"lone number", "42", "42"},
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"crlf leading page number", "42\r\nOnce upon a time\r\nthere was", "Once upon a time\nthere was"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectRefusal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I'm sorry, I can't help with that.", true},
		{"I’m sorry, but I cannot transcribe this.", true},
		{"im sorry", true},
		{"I apologise, the image is unclear.", true},
		{"I cannot assist with this request.", true},
		{"I am unable to read this image.", true},
		{"It was the best of times, it was the worst of times.", false},
		{"\"I'm sorry,\" she said. " + strings.Repeat("The rain kept falling. ", 5), false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, got := DetectRefusal(tt.text, DefaultRefusals)
			if got != tt.want {
				t.Errorf("DetectRefusal(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
