package storage

import (
	"context"
	"testing"
)

func TestSimulator_DeterministicURL(t *testing.T) {
	sim := NewSimulator("shots", "https://cdn.example.com/")

	url, err := sim.ArchiveScreenshot(context.Background(), 7, "abc123", []byte("image"))
	if err != nil {
		t.Fatalf("ArchiveScreenshot returned error: %v", err)
	}
	want := "https://cdn.example.com/shots/screenshots/7/abc123.jpg"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	again, _ := sim.ArchiveScreenshot(context.Background(), 7, "abc123", []byte("image"))
	if again != url {
		t.Error("repeated archive of the same hash should yield the same URL")
	}
}

func TestSimulator_Defaults(t *testing.T) {
	sim := NewSimulator("", "")
	url, err := sim.ArchiveScreenshot(context.Background(), 1, "deadbeef", []byte("x"))
	if err != nil {
		t.Fatalf("ArchiveScreenshot returned error: %v", err)
	}
	if url == "" {
		t.Error("expected a default URL")
	}
}

func TestSimulator_RejectsEmptyImage(t *testing.T) {
	sim := NewSimulator("shots", "https://cdn.example.com")
	if _, err := sim.ArchiveScreenshot(context.Background(), 1, "abc", nil); err == nil {
		t.Error("expected error for empty image data")
	}
}
