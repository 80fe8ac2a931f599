package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty", "", ""},
		{"bare file", "stakes.csv", "stakes.csv"},
		{"root file", "/stakes.csv", "stakes.csv"},
		{"nested", "/home/user/.quorumlab/quorumlab.db", ".../.quorumlab/quorumlab.db"},
		{"unclean", "/data//votes/../votes/cert.csv", ".../votes/cert.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPath(tt.path); got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates parent", func(t *testing.T) {
		want := filepath.Join(dir, "a", "b", "samples.arrow")
		got, err := OutputPath(want)
		if err != nil {
			t.Fatalf("OutputPath: %v", err)
		}
		if got != want {
			t.Errorf("OutputPath = %q, want %q", got, want)
		}
		if info, err := os.Stat(filepath.Dir(want)); err != nil || !info.IsDir() {
			t.Errorf("parent directory not created: %v", err)
		}
	})

	tests := []struct {
		name        string
		path        string
		errContains string
	}{
		{"empty", "", "empty"},
		{"null byte", filepath.Join(dir, "bad\x00.jsonl"), "null byte"},
		{"directory", dir, "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OutputPath(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err, tt.errContains)
			}
		})
	}
}
