package kindle

import (
	"strings"
	"testing"
)

func TestReaderURL(t *testing.T) {
	s := &Session{cfg: Config{BaseURL: "https://read.amazon.com/"}}
	if got, want := s.ReaderURL("B0819W19WD"), "https://read.amazon.com/?asin=B0819W19WD"; got != want {
		t.Errorf("ReaderURL() = %q, want %q", got, want)
	}
}

func TestScriptHelpersQuoteSelectors(t *testing.T) {
	tests := []struct {
		name string
		js   string
		want string
	}{
		{"prop", jsQueryProp(selFooter, "textContent"), `"ion-title[item-i-d=\"reader-footer-title\"] .text-div"`},
		{"attr", jsQueryAttr(selPageImage, "src"), `"#kr-renderer .kg-full-page-img img"`},
		{"click", jsClickByText(selAlertButtons, "No"), `"ion-alert button"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.js, tt.want) {
				t.Errorf("script %q does not contain %s", tt.js, tt.want)
			}
		})
	}
}
