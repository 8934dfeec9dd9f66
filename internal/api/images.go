package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/markbase/internal/links"
	"github.com/starford/markbase/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

var errImagePath = errors.New("invalid image path")

// ImageHandler serves and accepts files under the image root.
type ImageHandler struct {
	root     string
	resolver *links.Resolver
}

// NewImageHandler creates a handler rooted at the image directory. The
// resolver builds the public URL of uploaded files.
func NewImageHandler(root string, resolver *links.Resolver) *ImageHandler {
	return &ImageHandler{root: root, resolver: resolver}
}

// locate maps a relative image path onto the image root. Paths climbing
// above the root are rejected, as is anything whose parent directory
// resolves outside it through a symlink.
func (h *ImageHandler) locate(rel string) (string, error) {
	if storage.Climbs(rel) {
		return "", fmt.Errorf("%w: %s", errImagePath, rel)
	}
	rel = storage.Normalize(rel)
	if rel == "" {
		return "", fmt.Errorf("%w: empty", errImagePath)
	}
	abs := filepath.Join(h.root, filepath.FromSlash(rel))
	if !h.within(filepath.Dir(abs)) {
		return "", fmt.Errorf("%w: %s", errImagePath, rel)
	}
	if _, err := os.Lstat(abs); err == nil && !h.within(abs) {
		return "", fmt.Errorf("%w: %s", errImagePath, rel)
	}
	return abs, nil
}

func (h *ImageHandler) within(p string) bool {
	realRoot, err := filepath.EvalSymlinks(h.root)
	if err != nil {
		return false
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	return realPath == realRoot || strings.HasPrefix(realPath, realRoot+string(os.PathSeparator))
}

// ServeFile handles GET /img/*.
func (h *ImageHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.locate(pagePath(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/images (multipart/form-data, field "file",
// optional field "dir").
//
//	@Summary		Upload an image
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Param			dir		formData	string	false	"Folder under the image root"
//	@Success		201		{object}	ImageUploadResponse
//	@Failure		400		{object}	errResponse
//	@Router			/images [post]
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	dir := r.FormValue("dir")
	if storage.Climbs(dir) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid image path"))
		return
	}
	rel := storage.Join(storage.Normalize(dir), name)

	if err := os.MkdirAll(filepath.Join(h.root, filepath.FromSlash(storage.Parent(rel))), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create image dir"))
		return
	}
	abs, err := h.locate(rel)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	dst, err := os.Create(abs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	url, _ := h.resolver.ResolveImage(rel)
	writeJSON(w, http.StatusCreated, ImageUploadResponse{
		Filename: name,
		Size:     written,
		URL:      url,
	})
}
