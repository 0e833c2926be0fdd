package export

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jackzampolin/pageturn/internal/home"
	"github.com/jackzampolin/pageturn/internal/manifest"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for x := 0; x < 40; x++ {
		img.Set(x, 30, color.Black)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestPDF(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "0-1.png")
	b := filepath.Join(dir, "1-2.png")
	writePNG(t, a)
	writePNG(t, b)
	out := filepath.Join(dir, "book", "book.pdf")

	if err := PDF([]string{a, b}, out); err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PageCount() = %d, want 2", n)
	}

	// Re-exporting replaces rather than appends.
	if err := PDF([]string{a}, out); err != nil {
		t.Fatalf("second PDF() error = %v", err)
	}
	if n, _ := PageCount(out); n != 1 {
		t.Errorf("PageCount() after re-export = %d, want 1", n)
	}
}

func TestPDF_Errors(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.pdf")
	if err := PDF(nil, out); !errors.Is(err, ErrNoImages) {
		t.Errorf("PDF(nil) error = %v, want ErrNoImages", err)
	}
	if err := PDF([]string{"/does/not/exist.png"}, out); err == nil {
		t.Error("PDF(missing) succeeded")
	}
}

func TestBookImages(t *testing.T) {
	dir, _ := home.New(t.TempDir())

	t.Run("from pages dir", func(t *testing.T) {
		writePNG(t, dir.PageImagePath("B01", 1, 2, 2))
		writePNG(t, dir.PageImagePath("B01", 0, 1, 2))
		got, err := BookImages(dir, "B01")
		if err != nil {
			t.Fatalf("BookImages() error = %v", err)
		}
		want := []string{dir.PageImagePath("B01", 0, 1, 2), dir.PageImagePath("B01", 1, 2, 2)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BookImages() = %v, want %v", got, want)
		}
	})

	t.Run("from metadata", func(t *testing.T) {
		p0 := dir.PageImagePath("B02", 0, 1, 1)
		p1 := dir.PageImagePath("B02", 1, 2, 1)
		writePNG(t, p0)
		writePNG(t, p1)
		book := &manifest.Book{Pages: []manifest.Page{
			{Index: 1, Page: 2, Total: 2, Screenshot: p1},
			{Index: 0, Page: 1, Total: 2, Screenshot: p0},
		}}
		if err := manifest.Save(dir.MetadataPath("B02"), book); err != nil {
			t.Fatal(err)
		}

		out, err := Book(dir, "B02")
		if err != nil {
			t.Fatalf("Book() error = %v", err)
		}
		if out != dir.ExportPath("B02") {
			t.Errorf("Book() = %s", out)
		}
		if n, _ := PageCount(out); n != 2 {
			t.Errorf("PageCount() = %d, want 2", n)
		}
	})
}
