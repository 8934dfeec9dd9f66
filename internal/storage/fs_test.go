package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/markbase/internal/apperr"
	"github.com/starford/markbase/internal/models"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func mustWrite(t *testing.T, s *FS, slug, content string) {
	t.Helper()
	if _, err := s.Write(slug, []byte(content)); err != nil {
		t.Fatalf("Write(%q): %v", slug, err)
	}
}

func writeRaw(t *testing.T, s *FS, rel, content string) {
	t.Helper()
	p := filepath.Join(s.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := "# Hello\nWorld\n"
	mustWrite(t, s, "note", content)
	got, err := s.Read("note")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != content {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "note.md")); err != nil {
		t.Errorf("expected note.md on disk: %v", err)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "a/b/c", "deep")
	got, err := s.Read("a/b/c")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteWithExtension(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "x.md", "lit")
	got, err := s.Read("x")
	if err != nil || string(got) != "lit" {
		t.Fatalf("Read = %q, %v", got, err)
	}
}

func TestWriteRootGoesToReadme(t *testing.T) {
	s := tempRoot(t)
	p, err := s.Write("", []byte("home"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(p) != IndexName {
		t.Errorf("root write landed in %s", p)
	}
	got, _ := s.Read("")
	if string(got) != "home" {
		t.Errorf("root read = %q", got)
	}
}

func TestWriteDirectoryTargetsIndex(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "folder/page", "p")
	p, err := s.Write("folder", []byte("index"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if p != filepath.Join(s.Root(), "folder", IndexName) {
		t.Errorf("write target = %s", p)
	}

	// An existing lower-case index is reused rather than shadowed.
	writeRaw(t, s, "other/readme.md", "old")
	p, err = s.Write("other", []byte("new"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(p) != "readme.md" {
		t.Errorf("expected existing readme.md to be reused, got %s", p)
	}
}

func TestDirectoryIndexPrecedence(t *testing.T) {
	s := tempRoot(t)
	writeRaw(t, s, "d/readme.md", "lower")
	writeRaw(t, s, "d/README.md", "exact")

	// Case-insensitive file systems cannot hold both names.
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "d"))
	if len(entries) != 2 {
		t.Skip("file system is case-insensitive")
	}

	p, err := s.Resolve("d")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(p) != "README.md" {
		t.Errorf("index = %s, want README.md", filepath.Base(p))
	}
}

func TestResolveDirectoryWithoutIndex(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "empty/child", "c")
	if _, err := s.Resolve("empty"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Resolve(empty) err = %v, want ErrNotFound", err)
	}
	if !s.IsDir("empty") {
		t.Error("directory should still exist")
	}
}

func TestResolveMissing(t *testing.T) {
	s := tempRoot(t)
	if _, err := s.Resolve("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Read(""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty root read err = %v", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
	// Traversal segments are dropped lexically, so the write stays inside.
	p, err := s.Write("../../escaped", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(p) != s.Root() {
		t.Errorf("write escaped root: %s", p)
	}
}

func TestSymlinkOutsideRootRejected(t *testing.T) {
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := tempRoot(t)
	if err := os.Symlink(outside, filepath.Join(s.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(s.Root(), "alias.md")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Resolve("link/secret"); err == nil {
		t.Error("resolved a document through a symlinked directory")
	}
	if _, err := s.Resolve("alias"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("symlinked file err = %v, want ErrInvalidPath", err)
	}
	if _, err := s.Write("link/new", []byte("x")); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("write through symlink err = %v, want ErrInvalidPath", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "new.md")); err == nil {
		t.Error("file was created outside the root")
	}
}

func TestDeleteSymlinkedFolderKeepsTarget(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "real/keep", "keep")
	if err := os.Symlink(filepath.Join(s.Root(), "real"), filepath.Join(s.Root(), "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if s.IsDir("alias") {
		t.Error("symlinked folder should not count as a directory")
	}
	for _, slug := range []string{"alias", "alias/keep"} {
		if err := s.Delete(slug); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidPath", slug, err)
		}
	}
	if got, err := s.Read("real/keep"); err != nil || string(got) != "keep" {
		t.Errorf("target folder damaged: %q, %v", got, err)
	}
	if _, err := os.Lstat(filepath.Join(s.Root(), "alias")); err != nil {
		t.Errorf("symlink removed: %v", err)
	}
}

func TestMoveDocument(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "a/b", "data")
	if err := s.Move("a/b", "c/d"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Resolve("a/b"); err == nil {
		t.Error("old slug should not resolve")
	}
	got, err := s.Read("c/d")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
}

func TestMoveDocumentCollision(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "one", "1")
	mustWrite(t, s, "two", "2")
	if err := s.Move("one", "two"); !errors.Is(err, apperr.ErrCollision) {
		t.Fatalf("err = %v, want ErrCollision", err)
	}
	got, _ := s.Read("two")
	if string(got) != "2" {
		t.Errorf("destination overwritten: %q", got)
	}
}

func TestMoveMissingSource(t *testing.T) {
	s := tempRoot(t)
	if err := s.Move("ghost", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMoveDirectory(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "x/page", "p")
	mustWrite(t, s, "x/sub/deep", "d")
	if err := s.Move("x", "y/z"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("y/z/sub/deep")
	if err != nil || string(got) != "d" {
		t.Errorf("Read moved = %q, %v", got, err)
	}
	if s.IsDir("x") {
		t.Error("source folder still present")
	}
}

func TestMoveDirectoryIntoItself(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "x/page", "p")
	before, _ := s.Tree()

	if err := s.MoveDir("x", "x/y"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if err := s.Move("x", "x"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("self move err = %v, want ErrInvalidPath", err)
	}
	after, _ := s.Tree()
	if len(before.Slugs()) != len(after.Slugs()) || after.Slugs()[0] != "x/page" {
		t.Errorf("tree changed: %v -> %v", before.Slugs(), after.Slugs())
	}
}

func TestMoveDirectoryRejects(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "x/page", "p")
	mustWrite(t, s, "taken/page", "p")
	mustWrite(t, s, "doc", "d")

	cases := []struct {
		from, to string
		want     error
	}{
		{"", "y", apperr.ErrInvalidPath},
		{"x", "", apperr.ErrInvalidPath},
		{"x", "taken", apperr.ErrCollision},
		{"x", "doc", apperr.ErrCollision},
		{"missing", "y", apperr.ErrNotFound},
	}
	for _, c := range cases {
		if err := s.MoveDir(c.from, c.to); !errors.Is(err, c.want) {
			t.Errorf("MoveDir(%q, %q) err = %v, want %v", c.from, c.to, err, c.want)
		}
	}
}

func TestDeleteDocument(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "del", "bye")
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestDeleteDirectory(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "tree/a", "a")
	mustWrite(t, s, "tree/sub/b", "b")
	writeRaw(t, s, "tree/sub/image.png", "png")
	if err := s.Delete("tree"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "tree")); !os.IsNotExist(err) {
		t.Errorf("folder still exists: %v", err)
	}
}

func TestDeleteDirectoryStopsAtFirstFailure(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "tree/a", "a")
	mustWrite(t, s, "tree/sub/b", "b")
	mustWrite(t, s, "tree/z", "z")

	errBusy := errors.New("busy")
	blocked := filepath.Join(s.Root(), "tree", "sub", "b.md")
	orig := removeFile
	removeFile = func(p string) error {
		if p == blocked {
			return errBusy
		}
		return orig(p)
	}
	t.Cleanup(func() { removeFile = orig })

	if err := s.Delete("tree"); !errors.Is(err, errBusy) {
		t.Fatalf("Delete err = %v, want %v", err, errBusy)
	}
	if _, err := s.Resolve("tree/a"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("tree/a should be gone, err = %v", err)
	}
	for _, slug := range []string{"tree/sub/b", "tree/z"} {
		if _, err := s.Resolve(slug); err != nil {
			t.Errorf("%s should remain: %v", slug, err)
		}
	}
}

func TestDeleteRootRejected(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "", "home")
	if err := s.Delete(""); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestListDirHidesOnlyTheIndex(t *testing.T) {
	s := tempRoot(t)
	writeRaw(t, s, "d/README.md", "index")
	writeRaw(t, s, "d/readme.md", "page")
	entries, err := os.ReadDir(filepath.Join(s.Root(), "d"))
	if err != nil || len(entries) != 2 {
		t.Skip("case-insensitive file system")
	}

	items, err := s.ListDir("d")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(items) != 1 || items[0] != (models.Entry{Type: models.EntryFile, Name: "readme", Slug: "d/readme"}) {
		t.Errorf("items = %+v", items)
	}
}

func TestListDir(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "README", "home")
	mustWrite(t, s, "beta", "b")
	mustWrite(t, s, "Alpha", "a")
	mustWrite(t, s, "zeta/inner", "z")
	mustWrite(t, s, "Apps/inner", "z")
	writeRaw(t, s, "notes.txt", "not md")

	items, err := s.ListDir("")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	want := []models.Entry{
		{Type: models.EntryDir, Name: "Apps", Slug: "Apps"},
		{Type: models.EntryDir, Name: "zeta", Slug: "zeta"},
		{Type: models.EntryFile, Name: "Alpha", Slug: "Alpha"},
		{Type: models.EntryFile, Name: "beta", Slug: "beta"},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %+v", items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestTreeOrderingAndSlugs(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "b", "")
	mustWrite(t, s, "A", "")
	mustWrite(t, s, "dir/x", "")

	tree, err := s.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(tree) != 3 {
		t.Fatalf("tree len = %d", len(tree))
	}
	dir, ok := tree[0].(*models.DirNode)
	if !ok || dir.Name != "dir" {
		t.Fatalf("first node = %#v, want dir", tree[0])
	}
	if f := dir.Children[0].(*models.FileNode); f.Slug != "dir/x" || f.Name != "x.md" {
		t.Errorf("child = %+v", f)
	}
	if tree[1].NodeName() != "A.md" || tree[2].NodeName() != "b.md" {
		t.Errorf("file order = %s, %s", tree[1].NodeName(), tree[2].NodeName())
	}
}

func TestFindByFilename(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "x/Foo", "")
	mustWrite(t, s, "a/Foo", "")
	mustWrite(t, s, "foo", "")

	got, err := s.FindByFilename("Foo")
	if err != nil {
		t.Fatalf("FindByFilename: %v", err)
	}
	if len(got) != 2 || got[0] != "a/Foo" || got[1] != "x/Foo" {
		t.Errorf("matches = %v", got)
	}
}

func TestMaxModTime(t *testing.T) {
	s := tempRoot(t)
	if m, err := s.MaxModTime(); err != nil || !m.IsZero() {
		t.Fatalf("empty root = %v, %v", m, err)
	}
	mustWrite(t, s, "a", "")
	mustWrite(t, s, "b/c", "")
	future := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := os.Chtimes(filepath.Join(s.Root(), "b", "c.md"), future, future); err != nil {
		t.Fatal(err)
	}
	m, err := s.MaxModTime()
	if err != nil {
		t.Fatalf("MaxModTime: %v", err)
	}
	if !m.Equal(future) {
		t.Errorf("max = %v, want %v", m, future)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	mustWrite(t, s, "atomic", "original content")
	mustWrite(t, s, "atomic", "updated content")
	got, _ := s.Read("atomic")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".markbase-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "markbase-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
