package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type LocalStorage struct {
	dir string
	now func() time.Time
}

func NewLocal(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, now: time.Now}, nil
}

func (l *LocalStorage) Save(ctx context.Context, originalName string, r io.Reader, size int64) (*StoredFile, error) {
	key := fmt.Sprintf("%d-%s", l.now().UnixMilli(), sanitizeName(originalName))

	f, err := os.Create(filepath.Join(l.dir, key))
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return &StoredFile{
		OriginalName: originalName,
		Key:          key,
		Location:     "/uploads/" + key,
		Size:         n,
	}, nil
}

// ListPDFs returns the stored PDF file names, newest first. Used by the admin
// files view.
func (l *LocalStorage) ListPDFs() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (l *LocalStorage) Dir() string {
	return l.dir
}

// sanitizeName strips path separators so a supplied filename cannot escape
// the upload directory.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "." || name == "" {
		name = "upload"
	}
	return name
}
