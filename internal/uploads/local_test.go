package uploads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	st.now = func() time.Time { return time.UnixMilli(1700000000000) }

	stored, err := st.Save(context.Background(), "w2-form.pdf", strings.NewReader("%PDF-1.4 fake"), 13)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if stored.Key != "1700000000000-w2-form.pdf" {
		t.Fatalf("unexpected key %q", stored.Key)
	}
	if stored.Location != "/uploads/1700000000000-w2-form.pdf" {
		t.Fatalf("unexpected location %q", stored.Location)
	}

	data, err := os.ReadFile(filepath.Join(dir, stored.Key))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "%PDF-1.4 fake" {
		t.Fatalf("stored content mismatch")
	}
}

func TestLocalSaveStripsPath(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}

	stored, err := st.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if strings.Contains(stored.Key, "..") || strings.Contains(stored.Key, "/") {
		t.Fatalf("expected sanitized key, got %q", stored.Key)
	}
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}

	for _, name := range []string{"1-a.pdf", "2-b.PDF", "3-c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	pdfs, err := st.ListPDFs()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pdfs) != 2 {
		t.Fatalf("expected two pdfs, got %v", pdfs)
	}
	if pdfs[0] != "2-b.PDF" || pdfs[1] != "1-a.pdf" {
		t.Fatalf("expected newest first, got %v", pdfs)
	}
}
