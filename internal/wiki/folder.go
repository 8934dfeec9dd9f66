package wiki

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/markbase/internal/apperr"
	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/storage"
)

// Label is the display name of a slug: its last segment, "Home" for the root.
func Label(slug string) string {
	slug = storage.Normalize(slug)
	if slug == "" {
		return "Home"
	}
	return path.Base(slug)
}

// PageName cleans a user supplied page name. The extension is dropped and
// empty, ".", ".." or nested names are rejected.
func PageName(name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")), "/")
	name = storage.StripExt(name)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", fmt.Errorf("wiki: page name %q: %w", name, apperr.ErrInvalidPath)
	}
	return name, nil
}

// Target joins a folder slug and a page name into a document slug. A folder
// slug that points at a file is replaced by the file's folder.
func Target(dir, name string) (string, error) {
	name, err := PageName(name)
	if err != nil {
		return "", err
	}
	dir = storage.Normalize(dir)
	if storage.HasExt(dir) {
		dir = storage.Parent(dir)
	}
	slug := storage.Normalize(storage.Join(dir, name))
	if slug == "" {
		return "", fmt.Errorf("wiki: empty target: %w", apperr.ErrInvalidPath)
	}
	return slug, nil
}

// FolderIndex generates the Markdown index of a folder from its listing.
// Links are relative to the folder.
func FolderIndex(folder string, items []models.Entry) string {
	folder = storage.Normalize(folder)
	var dirs, files []models.Entry
	for _, it := range items {
		switch it.Type {
		case models.EntryDir:
			dirs = append(dirs, it)
		case models.EntryFile:
			files = append(files, it)
		}
	}

	lines := []string{"# " + Label(folder), "", "_Auto-generated folder index._", ""}
	if len(dirs) == 0 && len(files) == 0 {
		lines = append(lines, "_This folder is empty._", "")
		return strings.Join(lines, "\n")
	}

	section := func(heading string, entries []models.Entry) {
		if len(entries) == 0 {
			return
		}
		lines = append(lines, "## "+heading, "")
		for _, e := range entries {
			target := e.Slug
			if folder != "" {
				target = strings.TrimPrefix(target, folder+"/")
			}
			lines = append(lines, fmt.Sprintf("- [%s](%s)", e.Name, linkDest(target)))
		}
		lines = append(lines, "")
	}
	section("Folders", dirs)
	section("Pages", files)
	return strings.Join(lines, "\n")
}

// linkDest wraps destinations containing spaces or parentheses in angle
// brackets so they survive as a single Markdown link destination.
func linkDest(target string) string {
	if strings.ContainsAny(target, " ()") {
		return "<" + target + ">"
	}
	return target
}
