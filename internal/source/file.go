package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// File replays captured portal payloads from a JSON document on disk.
// Useful for development without portal credentials, and for tests. The
// file may hold a single payload or an array of them.
type File struct {
	path string
}

var _ Source = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Fetch(ctx context.Context) (Result, error) {
	_ = ctx // a local read does not need cancellation

	data, err := os.ReadFile(f.path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %q: %v", ErrUnavailable, f.path, err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return Result{}, fmt.Errorf("%w: parse %q: %v", ErrUnavailable, f.path, err)
	}

	payloads := []any{payload}
	if list, ok := payload.([]any); ok {
		payloads = list
	}
	return BuildResult(payloads)
}
