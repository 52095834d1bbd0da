package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/history"
)

var testParams = fqcomp.Params{KSize: 21, Scaled: 10, HashFunction: fqcomp.HashMurmur3, Seed: fqcomp.DefaultSeed}

func randomGenome(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	g := make([]byte, n)
	for i := range g {
		g[i] = "ACGT"[rng.IntN(4)]
	}
	return g
}

func testLibrary(t *testing.T, genome []byte) *fqcomp.Library {
	t.Helper()
	b, err := fqcomp.NewBuilder(fqcomp.WithParams(testParams))
	if err != nil {
		t.Fatal(err)
	}
	b.AddSequence(genome)
	lib, err := fqcomp.NewLibrary(testParams, []fqcomp.Reference{{Name: "E Coli", Sketch: b.Sketch()}})
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

// writeFASTQ tiles genome into overlapping 150bp reads.
func writeFASTQ(t *testing.T, path string, genome []byte) {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i+150 <= len(genome); i += 100 {
		fmt.Fprintf(&buf, "@read%d\n%s\n+\n%s\n", i, genome[i:i+150], strings.Repeat("I", 150))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

type testEnv struct {
	srv     *httptest.Server
	dataDir string
	store   *history.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	genome := randomGenome(1, 20000)
	dataDir := t.TempDir()
	writeFASTQ(t, filepath.Join(dataDir, "sample.fastq"), genome)

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(testLibrary(t, genome), Config{DataDir: dataDir, History: store, MaxReads: 1000000})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, dataDir: dataDir, store: store}
}

func (e *testEnv) postAnalyze(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(e.srv.URL+"/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHealthAndReferences(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(env.srv.URL + "/references")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		KSize      int             `json:"ksize"`
		References []referenceInfo `json:"references"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.KSize != 21 || len(body.References) != 1 || body.References[0].Name != "E Coli" {
		t.Errorf("/references = %+v", body)
	}
}

func TestAnalyzeLocalPath(t *testing.T) {
	env := newTestEnv(t)

	status, out := env.postAnalyze(t, `{"path":"sample.fastq"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, out)
	}
	comp, ok := out["composition_estimate"].(map[string]any)
	if !ok {
		t.Fatalf("composition_estimate missing: %v", out)
	}
	if comp["E Coli"] != 1.0 {
		t.Errorf("E Coli fraction = %v, want 1", comp["E Coli"])
	}
	if out["is_contaminated"] != false || out["is_mixed"] != false {
		t.Errorf("unexpected verdict: %v", out)
	}
	if _, hasErr := out["error"]; hasErr {
		t.Errorf("success response carries an error field: %v", out)
	}

	entries, err := env.store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Result == nil {
		t.Errorf("history = %+v, want one result", entries)
	}
}

func TestAnalyzeRequestErrors(t *testing.T) {
	env := newTestEnv(t)
	outside := t.TempDir()
	writeFASTQ(t, filepath.Join(outside, "secret.fastq"), randomGenome(3, 5000))
	if err := os.Symlink(outside, filepath.Join(env.dataDir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret.fastq"), filepath.Join(env.dataDir, "secret.fastq")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"invalid json", `{`, http.StatusBadRequest, ""},
		{"neither path nor url", `{}`, http.StatusBadRequest, ""},
		{"both path and url", `{"path":"a","url":"http://x/a.fq"}`, http.StatusBadRequest, ""},
		{"zero reads", `{"path":"sample.fastq","reads":0}`, http.StatusBadRequest, ""},
		{"escapes data dir", `{"path":"../etc/passwd"}`, http.StatusBadRequest, ""},
		{"absolute outside data dir", `{"path":"/etc/passwd"}`, http.StatusBadRequest, ""},
		{"symlinked directory leaves data dir", `{"path":"link/secret.fastq"}`, http.StatusBadRequest, ""},
		{"symlinked file leaves data dir", `{"path":"secret.fastq"}`, http.StatusBadRequest, ""},
		{"missing file behind outside symlink", `{"path":"link/missing.fastq"}`, http.StatusBadRequest, ""},
		{"bad url scheme", `{"url":"ftp://x/a.fq"}`, http.StatusBadRequest, ""},
		{"missing file", `{"path":"missing.fastq"}`, http.StatusUnprocessableEntity, "source_read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := env.postAnalyze(t, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.status, out)
			}
			if _, ok := out["error"]; !ok {
				t.Errorf("response has no error field: %v", out)
			}
			if tt.kind != "" && out["kind"] != tt.kind {
				t.Errorf("kind = %v, want %s", out["kind"], tt.kind)
			}
		})
	}
}

func TestAnalyzeSymlinkInsideDataDir(t *testing.T) {
	env := newTestEnv(t)
	if err := os.Mkdir(filepath.Join(env.dataDir, "runs"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(env.dataDir, "sample.fastq"), filepath.Join(env.dataDir, "runs", "latest.fastq")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	status, out := env.postAnalyze(t, `{"path":"runs/latest.fastq"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, out)
	}
	if comp, _ := out["composition_estimate"].(map[string]any); comp["E Coli"] != 1.0 {
		t.Errorf("composition = %v", out["composition_estimate"])
	}
}

func TestAnalyzeEmptyFile(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.dataDir, "empty.fastq"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	status, out := env.postAnalyze(t, `{"path":"empty.fastq"}`)
	if status != http.StatusUnprocessableEntity || out["kind"] != "no_reads" {
		t.Errorf("status %d body %v, want 422 no_reads", status, out)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.postAnalyze(t, `{"path":"sample.fastq"}`)
	env.postAnalyze(t, `{"path":"missing.fastq"}`)

	resp, err := http.Get(env.srv.URL + "/history?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Runs []history.Entry `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 1 || body.Runs[0].Error == nil {
		t.Errorf("runs = %+v, want the newest (failed) run", body.Runs)
	}

	resp, err = http.Get(env.srv.URL + "/history?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", resp.StatusCode)
	}
}

func TestHistoryDisabled(t *testing.T) {
	h := NewHandler(testLibrary(t, randomGenome(2, 1000)), Config{})
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"path":"x.fq"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("local path without data dir: status = %d, want 400", rec.Code)
	}
}
