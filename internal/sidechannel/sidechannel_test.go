package sidechannel

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackzampolin/pageturn/internal/reader"
)

const (
	testASIN = "B0819W19WD"
	infoURL  = "https://read.amazon.com/service/mobile/reader/startReading?asin=b0819w19wd&clientVersion=2000"
	metaURL  = "https://k4wyjmetadata.s3.amazonaws.com/books/B0819W19WD/YJmetadata.jsonp"
)

func infoResponse() reader.Response {
	return reader.Response{
		URL:    infoURL,
		Status: 200,
		Body:   []byte(`{"karamelToken":"secret","metadataUrl":"https://x","YJFormatVersion":"1","contentVersion":"42"}`),
	}
}

func metaResponse(asin string) reader.Response {
	return reader.Response{
		URL:    metaURL,
		Status: 200,
		Body:   []byte(`loadMetadata({"asin":"` + asin + `","title":"Deep Work","cpr":"x","authorsList":["Newport, Cal","Plato"]});`),
	}
}

func TestCollector_Wants(t *testing.T) {
	c := NewCollector(testASIN, "read.amazon.com")
	tests := []struct {
		url  string
		want bool
	}{
		{infoURL, true},
		{metaURL, true},
		{"https://read.amazon.com/service/mobile/reader/startReading?asin=OTHER", false},
		{"https://evil.example.com/service/mobile/reader/startReading?asin=B0819W19WD", false},
		{"https://read.amazon.com/static/app.js", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := c.Wants(tt.url); got != tt.want {
				t.Errorf("Wants(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestCollector_HandleScrubs(t *testing.T) {
	c := NewCollector(testASIN, "read.amazon.com")
	c.Handle(infoResponse())
	c.Handle(metaResponse(testASIN))

	info, meta := c.Received()
	if info == nil || meta == nil {
		t.Fatalf("Received() = %v, %v", info, meta)
	}
	for _, k := range []string{"karamelToken", "metadataUrl", "YJFormatVersion"} {
		if _, ok := info[k]; ok {
			t.Errorf("info still has %q", k)
		}
	}
	if info["contentVersion"] != "42" {
		t.Errorf("info lost contentVersion: %v", info)
	}
	if _, ok := meta["cpr"]; ok {
		t.Error("meta still has cpr")
	}
	want := []any{"Cal Newport", "Plato"}
	if !reflect.DeepEqual(meta["authorsList"], want) {
		t.Errorf("authorsList = %v, want %v", meta["authorsList"], want)
	}
}

func TestCollector_HandleIgnores(t *testing.T) {
	tests := []struct {
		name string
		resp reader.Response
	}{
		{"non-200", reader.Response{URL: infoURL, Status: 304, Body: []byte(`{}`)}},
		{"malformed info", reader.Response{URL: infoURL, Status: 200, Body: []byte(`not json`)}},
		{"malformed jsonp", reader.Response{URL: metaURL, Status: 200, Body: []byte(`loadMetadata(`)}},
		{"other document", metaResponse("B000000000")},
		{"unrelated", reader.Response{URL: "https://read.amazon.com/x", Status: 200, Body: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(testASIN, "read.amazon.com")
			c.Handle(tt.resp)
			if info, meta := c.Received(); info != nil || meta != nil {
				t.Errorf("Received() = %v, %v; want nothing", info, meta)
			}
		})
	}
}

func TestCollector_Wait(t *testing.T) {
	t.Run("both received", func(t *testing.T) {
		c := NewCollector(testASIN, "read.amazon.com")
		go func() {
			time.Sleep(5 * time.Millisecond)
			c.Handle(infoResponse())
			c.Handle(metaResponse(testASIN))
		}()
		info, meta, err := c.Wait(context.Background(), time.Second, time.Millisecond)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if info == nil || meta == nil {
			t.Fatal("Wait() returned nil payloads")
		}
	})

	t.Run("received between last interval and timeout", func(t *testing.T) {
		c := NewCollector(testASIN, "read.amazon.com")
		c.Handle(infoResponse())
		go func() {
			time.Sleep(150 * time.Millisecond)
			c.Handle(metaResponse(testASIN))
		}()
		// Checks run at 0, 100ms and 200ms.
		_, meta, err := c.Wait(context.Background(), 200*time.Millisecond, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if meta == nil {
			t.Fatal("Wait() returned nil meta")
		}
	})

	t.Run("meta missing", func(t *testing.T) {
		c := NewCollector(testASIN, "read.amazon.com")
		c.Handle(infoResponse())
		_, _, err := c.Wait(context.Background(), 10*time.Millisecond, time.Millisecond)
		if !errors.Is(err, ErrMetadataTimeout) {
			t.Fatalf("Wait() error = %v, want ErrMetadataTimeout", err)
		}
	})
}

func TestParseJSONP(t *testing.T) {
	got, err := ParseJSONP([]byte(`cb({"a":"(b)"});`))
	if err != nil {
		t.Fatalf("ParseJSONP() error = %v", err)
	}
	if got["a"] != "(b)" {
		t.Errorf("ParseJSONP() = %v", got)
	}
	for _, bad := range []string{"", "{}", "cb(", "cb(null)", "cb([1,2])"} {
		if _, err := ParseJSONP([]byte(bad)); err == nil {
			t.Errorf("ParseJSONP(%q) succeeded", bad)
		}
	}
}

func TestNormalizeAuthors(t *testing.T) {
	got := NormalizeAuthors([]any{"Newport, Cal", " Plato ", "A, B, C", 7})
	want := []any{"Cal Newport", "Plato", "A, B, C", 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeAuthors() = %v, want %v", got, want)
	}
}
