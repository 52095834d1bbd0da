package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/seqio"
)

var (
	errLocalDisabled = errors.New("local paths are disabled on this server")
	errOutsideData   = errors.New("path is outside the data directory")
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok", "references": h.lib.Len()})
}

type referenceInfo struct {
	Name   string `json:"name"`
	Hashes int    `json:"hashes"`
	Scaled uint64 `json:"scaled"`
}

func (h *Handler) ListReferences(w http.ResponseWriter, r *http.Request) {
	p := h.lib.Params()
	refs := make([]referenceInfo, 0, h.lib.Len())
	for _, ref := range h.lib.References() {
		refs = append(refs, referenceInfo{
			Name:   ref.Name,
			Hashes: ref.Sketch.Len(),
			Scaled: ref.Sketch.Params().Scaled,
		})
	}
	writeJSON(w, http.StatusOK, JSON{
		"ksize":         p.KSize,
		"scaled":        p.Scaled,
		"hash_function": p.HashFunction.String(),
		"references":    refs,
	})
}

// AnalyzeRequest is the body of POST /analyze. Exactly one of Path and URL
// must be set.
type AnalyzeRequest struct {
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
	Reads *int   `json:"reads,omitempty"`
}

func (h *Handler) PostAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	req.URL = strings.TrimSpace(req.URL)

	location, reads, err := h.validate(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	ctx := r.Context()
	if h.cfg.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.AnalyzeTimeout)
		defer cancel()
	}

	res, err := h.analyze(ctx, location, reads)
	if err != nil {
		report := fqcomp.NewErrorReport(location, err)
		h.record(ctx, nil, report)
		status := http.StatusUnprocessableEntity
		if report.Kind == "internal" {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, report)
		return
	}
	h.record(ctx, res, nil)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) validate(req AnalyzeRequest) (string, int, error) {
	if (req.Path == "") == (req.URL == "") {
		return "", 0, errors.New("exactly one of path or url is required")
	}

	reads := h.cfg.DefaultReads
	if req.Reads != nil {
		reads = *req.Reads
	}
	if reads <= 0 {
		return "", 0, fmt.Errorf("reads must be positive, got %d", reads)
	}
	if h.cfg.MaxReads > 0 && reads > h.cfg.MaxReads {
		return "", 0, fmt.Errorf("reads must be at most %d, got %d", h.cfg.MaxReads, reads)
	}

	if req.URL != "" {
		if !seqio.IsURL(req.URL) {
			return "", 0, fmt.Errorf("url must be http or https: %q", req.URL)
		}
		return req.URL, reads, nil
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		return "", 0, err
	}
	return path, reads, nil
}

// resolvePath maps a request path onto DataDir, rejecting anything that
// escapes it either lexically or through a symlink. The returned path has
// its symlinks resolved.
func (h *Handler) resolvePath(p string) (string, error) {
	if h.cfg.DataDir == "" {
		return "", errLocalDisabled
	}
	root, err := filepath.Abs(h.cfg.DataDir)
	if err != nil {
		return "", err
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, p)
	}
	full = filepath.Clean(full)
	if !within(root, full) {
		return "", fmt.Errorf("%w: %q", errOutsideData, p)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("data directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Missing files fail later as a source error; their parent must
		// still resolve inside the data directory.
		parent, perr := filepath.EvalSymlinks(filepath.Dir(full))
		if perr == nil && !within(realRoot, parent) {
			return "", fmt.Errorf("%w: %q", errOutsideData, p)
		}
		return full, nil
	case err != nil:
		return "", err
	case !within(realRoot, resolved):
		return "", fmt.Errorf("%w: %q", errOutsideData, p)
	}
	return resolved, nil
}

// within reports whether path is root or below it. Both must be clean and
// absolute.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (h *Handler) analyze(ctx context.Context, location string, reads int) (*fqcomp.Result, error) {
	src, err := seqio.OpenClient(ctx, h.cfg.HTTPClient, location)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return fqcomp.Analyze(ctx, src, h.lib, reads, h.cfg.Options...)
}

// record stores the outcome when a history store is configured. Failures are
// logged and do not affect the response.
func (h *Handler) record(ctx context.Context, res *fqcomp.Result, report *fqcomp.ErrorReport) {
	if h.cfg.History == nil {
		return
	}
	var err error
	if res != nil {
		_, err = h.cfg.History.RecordResult(context.WithoutCancel(ctx), res)
	} else {
		_, err = h.cfg.History.RecordError(context.WithoutCancel(ctx), report)
	}
	if err != nil {
		h.log.Warn("recording history failed", "err", err)
	}
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.cfg.History == nil {
		writeJSON(w, http.StatusNotFound, JSON{"error": "history is not enabled"})
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := h.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"runs": entries})
}
