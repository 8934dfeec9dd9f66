package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// indexed reports whether the stored payload lists slug.
func indexed(env *testEnv, slug string) bool {
	p, err := NewJSONStore(filepath.Join(env.cache, "search_index.json")).Read()
	if err != nil || p == nil {
		return false
	}
	_, ok := p.Pages[slug]
	return ok
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, slug string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+slug)
	r.mu.Unlock()
}

func (r *recorder) has(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, env *testEnv, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rebuild := func() error {
		_, err := env.ix.Build()
		return err
	}
	go Watch(ctx, rebuild, env.root, quietLogger, cb)
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	env := newEnv(t)
	rec := &recorder{}
	startWatcher(t, env, rec.record)

	env.write(t, "new.md", "# New")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(env, "new")
	}, "new file not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:new")
	}, "expected created:new callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	env := newEnv(t)
	startWatcher(t, env, nil)

	subDir := filepath.Join(env.root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(env, "subdir/deep")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	env := newEnv(t)
	env.write(t, "del.md", "# Delete Me")
	if _, err := env.ix.Build(); err != nil {
		t.Fatal(err)
	}
	if !indexed(env, "del") {
		t.Fatal("precondition: file should be indexed")
	}

	rec := &recorder{}
	startWatcher(t, env, rec.record)
	_ = os.Remove(filepath.Join(env.root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(env, "del")
	}, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:del")
	}, "expected deleted:del callback")
}

func TestWatcher_Rename(t *testing.T) {
	env := newEnv(t)
	env.write(t, "old.md", "# Rename")
	if _, err := env.ix.Build(); err != nil {
		t.Fatal(err)
	}

	startWatcher(t, env, nil)
	_ = os.Rename(filepath.Join(env.root, "old.md"), filepath.Join(env.root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(env, "old") && indexed(env, "renamed")
	}, "rename not reflected: old slug should be gone and new slug indexed")
}
