package enccache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestCache_StoreAndGet(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "alice.jpg")
	writeFile(t, imgPath, "image-bytes")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	enc := []facedet.Encoding{{1, 2, 3}}
	if err := c.StoreEncodings("alice", []string{imgPath}, enc); err != nil {
		t.Fatalf("StoreEncodings: %v", err)
	}

	got, needsUpdate := c.GetEncodings("alice", []string{imgPath})
	if needsUpdate {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0][0] != 1 {
		t.Errorf("unexpected encodings: %v", got)
	}
}

func TestCache_MissingPerson(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "bob.jpg")
	writeFile(t, imgPath, "image-bytes")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, needsUpdate := c.GetEncodings("bob", []string{imgPath}); !needsUpdate {
		t.Error("expected needsUpdate for unknown person")
	}
}

func TestCache_InvalidatesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "alice.jpg")
	writeFile(t, imgPath, "original")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.StoreEncodings("alice", []string{imgPath}, []facedet.Encoding{{1}}); err != nil {
		t.Fatalf("StoreEncodings: %v", err)
	}

	writeFile(t, imgPath, "modified")

	if _, needsUpdate := c.GetEncodings("alice", []string{imgPath}); !needsUpdate {
		t.Error("expected invalidation after file content changed")
	}
}

func TestCache_InvalidatesOnFileSetChange(t *testing.T) {
	dir := t.TempDir()
	img1 := filepath.Join(dir, "a1.jpg")
	img2 := filepath.Join(dir, "a2.jpg")
	writeFile(t, img1, "one")
	writeFile(t, img2, "two")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.StoreEncodings("alice", []string{img1}, []facedet.Encoding{{1}}); err != nil {
		t.Fatalf("StoreEncodings: %v", err)
	}

	// An added reference image invalidates the whole entry.
	if _, needsUpdate := c.GetEncodings("alice", []string{img1, img2}); !needsUpdate {
		t.Error("expected invalidation after image set changed")
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "alice.jpg")
	writeFile(t, imgPath, "image-bytes")
	cachePath := filepath.Join(dir, "enc.cache")

	c1, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c1.StoreEncodings("alice", []string{imgPath}, []facedet.Encoding{{7, 8}}); err != nil {
		t.Fatalf("StoreEncodings: %v", err)
	}

	c2, err := Open(cachePath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, needsUpdate := c2.GetEncodings("alice", []string{imgPath})
	if needsUpdate {
		t.Fatal("expected cache hit after reopen")
	}
	if len(got) != 1 || got[0][1] != 8 {
		t.Errorf("unexpected encodings after reopen: %v", got)
	}
}

func TestCache_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "enc.cache")
	writeFile(t, cachePath, "not cbor at all")

	c, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open on corrupt file: %v", err)
	}
	if names := c.Names(); len(names) != 0 {
		t.Errorf("expected empty cache, got %v", names)
	}
}

func TestCache_RemovePerson(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "alice.jpg")
	writeFile(t, imgPath, "image-bytes")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.StoreEncodings("alice", []string{imgPath}, []facedet.Encoding{{1}}); err != nil {
		t.Fatalf("StoreEncodings: %v", err)
	}

	if err := c.RemovePerson("alice"); err != nil {
		t.Fatalf("RemovePerson: %v", err)
	}
	if _, needsUpdate := c.GetEncodings("alice", []string{imgPath}); !needsUpdate {
		t.Error("expected miss after removal")
	}

	// Removing again is a no-op.
	if err := c.RemovePerson("alice"); err != nil {
		t.Errorf("RemovePerson twice: %v", err)
	}
}

func TestCache_Names(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "x.jpg")
	writeFile(t, imgPath, "x")

	c, err := Open(filepath.Join(dir, "enc.cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, name := range []string{"carol", "alice", "bob"} {
		if err := c.StoreEncodings(name, []string{imgPath}, []facedet.Encoding{{1}}); err != nil {
			t.Fatalf("StoreEncodings(%s): %v", name, err)
		}
	}

	names := c.Names()
	want := []string{"alice", "bob", "carol"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
