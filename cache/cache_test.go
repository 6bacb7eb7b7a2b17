package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyDeterministicAndNormalized(t *testing.T) {
	a := Key("blog", "일본", "시부야", "스시")
	b := Key(" blog ", "일본", "시부야", "스시")
	c := Key("BLOG", "일본", "시부야", "스시")
	if a != b || a != c {
		t.Fatalf("key not normalized: %q %q %q", a, b, c)
	}
	if a == Key("blog", "일본", "신주쿠", "스시") {
		t.Fatal("different parameters produced the same key")
	}
	if len(a) != 16 {
		t.Fatalf("key length = %d, want 16 hex chars", len(a))
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "nope.json"))
	if c.Seen("k", "id") {
		t.Fatal("empty cache reported an id as seen")
	}
	if c.Len("k") != 0 {
		t.Fatalf("len = %d, want 0", c.Len("k"))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := Load(path)
	if c.Len("k") != 0 {
		t.Fatal("corrupt cache should load as empty")
	}
}

func TestSeenAddReset(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "seen.json"))

	key := Key("blog", "일본", "시부야", "스시")
	if c.Seen(key, "ChIJ123abc") {
		t.Fatal("unseen id reported as seen")
	}
	c.Add(key, "ChIJ123abc")
	c.Add(key, "ChIJ123abc")
	c.Add(key, "")
	if !c.Seen(key, "ChIJ123abc") {
		t.Fatal("added id not reported as seen")
	}
	if c.Len(key) != 1 {
		t.Fatalf("len = %d, want duplicate and empty ids ignored", c.Len(key))
	}

	c.Reset(key)
	if c.Seen(key, "ChIJ123abc") || c.Len(key) != 0 {
		t.Fatal("reset did not clear the key")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	c := Load(path)
	c.Add("k1", "id-a")
	c.Add("k1", "id-b")
	c.Add("k2", "id-c")
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := Load(path)
	for _, id := range []string{"id-a", "id-b"} {
		if !reloaded.Seen("k1", id) {
			t.Fatalf("%s lost on round trip", id)
		}
	}
	if !reloaded.Seen("k2", "id-c") {
		t.Fatal("second key lost on round trip")
	}
}

func TestSaveMergesWithDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	// Two caches loaded from the same empty file, as two sequential runs
	// would. The second save must keep what the first one put on disk even
	// though the second cache never saw it in memory.
	first := Load(path)
	second := Load(path)

	first.Add("k", "id-old")
	if err := first.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	second.Add("k", "id-new")
	if err := second.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	final := Load(path)
	if !final.Seen("k", "id-old") || !final.Seen("k", "id-new") {
		t.Fatalf("merge-on-save lost ids: len=%d", final.Len("k"))
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "seen.json")
	c := Load(path)
	c.Add("k", "id")
	if err := c.Save(); err != nil {
		t.Fatalf("save into missing directory: %v", err)
	}
	if !Load(path).Seen("k", "id") {
		t.Fatal("saved cache not readable")
	}
}
