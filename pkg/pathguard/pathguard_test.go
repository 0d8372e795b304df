// Tests for embedding path validation.
package pathguard

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	guard, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name    string
		guard   Guard
		path    string
		want    string
		wantErr bool
	}{
		{
			name:  "relative path joins root",
			guard: guard,
			path:  "pt/2wge.npy",
			want:  filepath.Join(root, "pt", "2wge.npy"),
		},
		{
			name:  "absolute path inside root",
			guard: guard,
			path:  filepath.Join(root, "a.npy"),
			want:  filepath.Join(root, "a.npy"),
		},
		{
			name:    "path traversal attempt",
			guard:   guard,
			path:    "../../etc/passwd",
			wantErr: true,
		},
		{
			name:    "absolute path outside root",
			guard:   guard,
			path:    "/tmp/outside.npy",
			wantErr: true,
		},
		{
			name:    "empty path",
			guard:   guard,
			path:    "  ",
			wantErr: true,
		},
		{
			name:  "no restriction without root",
			guard: Guard{},
			path:  "/tmp/outside.npy",
			want:  "/tmp/outside.npy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.guard.Resolve(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEmptyRoot(t *testing.T) {
	g, err := New("   ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Root != "" {
		t.Fatalf("expected empty root, got %q", g.Root)
	}
}
