// Package uploads stores client tax documents (W-2s, 1099s) either on local
// disk or in an object-storage bucket. Content is never inspected.
package uploads

import (
	"context"
	"io"
)

type StoredFile struct {
	// OriginalName is the filename the client supplied.
	OriginalName string
	// Key is the name the file was stored under.
	Key string
	// Location is where the file can be retrieved from.
	Location string
	Size     int64
}

type Storage interface {
	Save(ctx context.Context, originalName string, r io.Reader, size int64) (*StoredFile, error)
}
