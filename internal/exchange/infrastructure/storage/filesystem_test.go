package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("<html>boleto</html>")
	path, err := store.Write(ctx, "BOL-20260828-3FA9C2D1", data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := filepath.Join("2026", "08", "BOL-20260828-3FA9C2D1.html"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	got, err := store.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read bytes differ from written bytes")
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := store.Write(ctx, "BOL-20260828-AAAAAAAA", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(ctx, "BOL-20260828-AAAAAAAA", []byte("two")); err == nil {
		t.Fatal("expected error on duplicate serial")
	}
}

func TestReadMissingDocument(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(context.Background(), "2026/01/BOL-x.html"); err == nil {
		t.Fatal("expected error for missing document")
	}
}
