package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/markbase/internal/storage"
)

var quietLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type testEnv struct {
	root  string
	cache string
	store *storage.FS
	ix    *Indexer
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	cacheDir := t.TempDir()
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	ix := New(store, NewJSONStore(filepath.Join(cacheDir, "search_index.json")), nil, opts...)
	return &testEnv{root: root, cache: cacheDir, store: store, ix: ix}
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(e.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildPayload(t *testing.T) {
	env := newEnv(t)
	env.write(t, "README.md", "# Welcome\nStart at [[Guide]].")
	env.write(t, "docs/Guide.md", "# The Guide\nHello guide readers.")
	env.write(t, "docs/setup.md", "see [guide](Guide.md#top) and `code here`")

	p, err := Build(env.store, time.Unix(1000, 0))
	if err != nil {
		t.Fatal(err)
	}
	if p.UpdatedAt != 1000 {
		t.Errorf("stamp = %d", p.UpdatedAt)
	}
	if got := p.Pages["docs/Guide"].Title; got != "The Guide" {
		t.Errorf("title = %q", got)
	}
	if got := p.Pages["docs/setup"].Title; got != "docs/setup" {
		t.Errorf("fallback title = %q", got)
	}
	if got := p.Pages["README"].Title; got != "Welcome" {
		t.Errorf("root title = %q", got)
	}
	if got := p.Index["guide"]; !reflect.DeepEqual(got, []string{"README", "docs/Guide", "docs/setup"}) {
		t.Errorf("postings for guide = %v", got)
	}
	if _, ok := p.Index["code"]; ok {
		t.Error("inline code should not be indexed")
	}
	if got := p.Backlinks["docs/Guide"]; !reflect.DeepEqual(got, []string{"README", "docs/setup"}) {
		t.Errorf("backlinks = %v", got)
	}
}

func TestBacklinksSymmetry(t *testing.T) {
	env := newEnv(t)
	env.write(t, "A.md", "links to [[B]]")
	env.write(t, "notes/B.md", "target")

	got, err := env.ix.Backlinks("notes/B")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("backlinks = %v", got)
	}
}

func TestBacklinksSkipAmbiguousAndExternal(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a/Foo.md", "one")
	env.write(t, "b/Foo.md", "two")
	env.write(t, "src.md", "[[Foo]] [x](https://example.com) [y](#local) [[Nowhere]]")

	p, err := env.ix.Load()
	if err != nil {
		t.Fatal(err)
	}
	for target, refs := range p.Backlinks {
		t.Errorf("unexpected backlink %s <- %v", target, refs)
	}
}

func TestBacklinksRelativeAndExplicit(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a/Foo.md", "one")
	env.write(t, "b/Foo.md", "two")
	env.write(t, "a/page.md", "[sibling](Foo.md) [[b/Foo]] [up](../top.md)")
	env.write(t, "top.md", "top")

	p, err := env.ix.Load()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"a/Foo": {"a/page"},
		"b/Foo": {"a/page"},
		"top":   {"a/page"},
	}
	if !reflect.DeepEqual(p.Backlinks, want) {
		t.Errorf("backlinks = %v, want %v", p.Backlinks, want)
	}
}

func TestSearchScoring(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "hello there world")
	env.write(t, "b.md", "hello only")
	env.write(t, "c.md", "nothing relevant")

	results, err := env.ix.Search("Hello, world")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Slug != "a" || results[0].Score != 2 {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].Slug != "b" || results[1].Score != 1 {
		t.Errorf("second = %+v", results[1])
	}
	if results[0].Snippet != "<mark>hello</mark> there world" {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestSearchTieBreakBySlug(t *testing.T) {
	env := newEnv(t)
	env.write(t, "zeta.md", "common")
	env.write(t, "alpha.md", "common")
	env.write(t, "mid/beta.md", "common")

	results, err := env.ix.Search("common")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.Slug)
	}
	if !reflect.DeepEqual(got, []string{"alpha", "mid/beta", "zeta"}) {
		t.Errorf("order = %v", got)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "text")
	for _, q := range []string{"", "  ", "!!", "a"} {
		results, err := env.ix.Search(q)
		if err != nil || len(results) != 0 {
			t.Errorf("Search(%q) = %v, %v", q, results, err)
		}
	}
}

func TestSearchPaths(t *testing.T) {
	env := newEnv(t)
	env.write(t, "notes/alpha.md", "# Project Alpha")
	env.write(t, "alpha-notes.md", "# Alpha Notes")
	env.write(t, "misc/zzz.md", "# Unrelated")
	env.write(t, "Beta.md", "# Beta mentions nothing")

	got, err := env.ix.SearchPaths("ALPHA")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha-notes", "notes/alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchPaths = %v, want %v", got, want)
	}

	got, _ = env.ix.SearchPaths("misc")
	if !reflect.DeepEqual(got, []string{"misc/zzz"}) {
		t.Errorf("slug-only match = %v", got)
	}
	if got, _ := env.ix.SearchPaths("  "); len(got) != 0 {
		t.Errorf("blank query = %v", got)
	}
}

func TestLoadRebuildsWhenStale(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	env := newEnv(t, WithClock(func() time.Time { return clock }))
	p := env.write(t, "doc.md", "original words")
	if err := os.Chtimes(p, base.Add(-time.Hour), base.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	first, err := env.ix.Load()
	if err != nil {
		t.Fatal(err)
	}
	if first.UpdatedAt != base.Unix() {
		t.Fatalf("stamp = %d", first.UpdatedAt)
	}

	if err := os.WriteFile(p, []byte("replacement words"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, base.Add(time.Second), base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	clock = base.Add(5 * time.Second)

	second, err := env.ix.Load()
	if err != nil {
		t.Fatal(err)
	}
	if second.UpdatedAt != clock.Unix() {
		t.Errorf("index was not rebuilt: stamp = %d", second.UpdatedAt)
	}
	if _, ok := second.Index["replacement"]; !ok {
		t.Error("rebuilt index does not reflect new content")
	}
}

func TestLoadReusesFreshCache(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	env := newEnv(t, WithClock(func() time.Time { return clock }))
	p := env.write(t, "doc.md", "words")
	_ = os.Chtimes(p, base.Add(-time.Hour), base.Add(-time.Hour))

	if _, err := env.ix.Load(); err != nil {
		t.Fatal(err)
	}
	clock = base.Add(time.Minute)
	again, err := env.ix.Load()
	if err != nil {
		t.Fatal(err)
	}
	if again.UpdatedAt != base.Unix() {
		t.Errorf("fresh cache was rebuilt: stamp = %d", again.UpdatedAt)
	}
}

func TestCorruptCacheRebuilds(t *testing.T) {
	env := newEnv(t)
	env.write(t, "doc.md", "content words")
	cacheFile := filepath.Join(env.cache, "search_index.json")

	for _, body := range []string{"{broken", `{"updated_at": 99999999999}`} {
		if err := os.WriteFile(cacheFile, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		p, err := env.ix.Load()
		if err != nil {
			t.Fatalf("corrupt cache %q: %v", body, err)
		}
		if _, ok := p.Pages["doc"]; !ok {
			t.Errorf("corrupt cache %q: pages = %v", body, p.Pages)
		}
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "# A\nalpha [[b]]")
	env.write(t, "b.md", "beta alpha")

	want, err := Build(env.store, time.Unix(42, 0))
	if err != nil {
		t.Fatal(err)
	}

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if p, err := db.Read(); err != nil || p != nil {
		t.Fatalf("empty db: %v, %v", p, err)
	}
	if err := db.Write(want); err != nil {
		t.Fatal(err)
	}
	got, err := db.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSQLiteBackedIndexer(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "sqlite backed search")

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ix := New(env.store, db, nil, WithLogger(quietLogger))
	results, err := ix.Search("backed")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Slug != "a" {
		t.Errorf("results = %+v", results)
	}
}
