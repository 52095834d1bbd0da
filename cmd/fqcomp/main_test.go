package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamirms/fqcomp"
)

func randomGenome(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed*31+7))
	g := make([]byte, n)
	for i := range g {
		g[i] = "ACGT"[rng.IntN(4)]
	}
	return g
}

func writeFASTA(t *testing.T, path string, genome []byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(">contig1\n")
	for i := 0; i < len(genome); i += 70 {
		buf.Write(genome[i:min(i+70, len(genome))])
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// writeFASTQ tiles every genome into overlapping 150bp reads.
func writeFASTQ(t *testing.T, path string, genomes ...[]byte) {
	t.Helper()
	var buf bytes.Buffer
	qual := strings.Repeat("I", 150)
	for gi, genome := range genomes {
		for i := 0; i+150 <= len(genome); i += 50 {
			fmt.Fprintf(&buf, "@g%d_%d\n%s\n+\n%s\n", gi, i, genome[i:i+150], qual)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// run executes the CLI and returns stdout and the returned error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type testFixture struct {
	refDir string
	ecoli  []byte
	phix   []byte
	dir    string
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		dir:   t.TempDir(),
		ecoli: randomGenome(1, 30000),
		phix:  randomGenome(2, 5386),
	}
	f.refDir = filepath.Join(f.dir, "references")
	if err := os.Mkdir(f.refDir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, genome := range map[string][]byte{"e_coli": f.ecoli, "phix": f.phix} {
		fa := filepath.Join(f.dir, name+".fa")
		writeFASTA(t, fa, genome)
		out := filepath.Join(f.refDir, name+".sketch")
		if _, err := run(t, "sketch", fa, "-o", out, "--ksize", "21", "--scaled", "10"); err != nil {
			t.Fatalf("sketch %s: %v", name, err)
		}
	}
	return f
}

func (f *testFixture) analyze(t *testing.T, fastq string, extra ...string) (map[string]any, error) {
	t.Helper()
	args := append([]string{"analyze", fastq, "--ref-dir", f.refDir, "--ksize", "21", "--scaled", "10"}, extra...)
	out, err := run(t, args...)
	var body map[string]any
	if jerr := json.Unmarshal([]byte(out), &body); jerr != nil {
		t.Fatalf("output is not JSON: %v\n%s", jerr, out)
	}
	return body, err
}

func TestAnalyzeClean(t *testing.T) {
	f := newFixture(t)
	fastq := filepath.Join(f.dir, "clean.fastq")
	writeFASTQ(t, fastq, f.ecoli)

	body, err := f.analyze(t, fastq)
	if err != nil {
		t.Fatalf("analyze returned %v, want success", err)
	}
	comp := body["composition_estimate"].(map[string]any)
	if comp["E Coli"] != 1.0 {
		t.Errorf("E Coli = %v, want 1", comp["E Coli"])
	}
	if _, ok := comp["Phix"]; ok {
		t.Errorf("Phix reported for a clean sample: %v", comp)
	}
	if body["is_contaminated"] != false {
		t.Errorf("is_contaminated = %v", body["is_contaminated"])
	}
}

func TestAnalyzePhixExitCode(t *testing.T) {
	f := newFixture(t)
	fastq := filepath.Join(f.dir, "spiked.fastq")
	writeFASTQ(t, fastq, f.ecoli, f.phix)

	body, err := f.analyze(t, fastq)
	var code exitCode
	if !errors.As(err, &code) || code != exitContaminated {
		t.Fatalf("err = %v, want exit code 2", err)
	}
	if body["is_contaminated"] != true || body["is_mixed"] != true {
		t.Errorf("verdict = %v", body)
	}
	if w, _ := body["contamination_warning"].(string); !strings.Contains(w, "PhiX") {
		t.Errorf("warning = %q, want the PhiX warning", w)
	}
}

func TestAnalyzeErrorReport(t *testing.T) {
	f := newFixture(t)

	body, err := f.analyze(t, filepath.Join(f.dir, "missing.fastq"))
	var code exitCode
	if !errors.As(err, &code) || code != exitError {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if body["kind"] != "source_read" {
		t.Errorf("kind = %v, want source_read", body["kind"])
	}
	if _, ok := body["composition_estimate"]; ok {
		t.Error("error report carries result fields")
	}

	// A k-mer size no reference was built with leaves no valid references.
	fastq := filepath.Join(f.dir, "clean.fastq")
	writeFASTQ(t, fastq, f.ecoli)
	out, err := run(t, "analyze", fastq, "--ref-dir", f.refDir, "--ksize", "25", "--scaled", "10")
	if !errors.As(err, &code) || code != exitError {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if !strings.Contains(out, `"kind": "no_valid_references"`) {
		t.Errorf("output = %s, want no_valid_references", out)
	}
}

func TestAnalyzeZeroReads(t *testing.T) {
	f := newFixture(t)
	fastq := filepath.Join(f.dir, "clean.fastq")
	writeFASTQ(t, fastq, f.ecoli)

	body, err := f.analyze(t, fastq, "--reads", "0")
	var code exitCode
	if !errors.As(err, &code) || code != exitError {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if body["kind"] != "no_reads" {
		t.Errorf("kind = %v, want no_reads", body["kind"])
	}

	body, err = f.analyze(t, fastq, "--reads", "-1")
	if err != nil {
		t.Fatalf("unlimited reads: %v", err)
	}
	want := float64((len(f.ecoli)-150)/50 + 1)
	if body["reads_sampled"] != want {
		t.Errorf("reads_sampled = %v, want %v", body["reads_sampled"], want)
	}
}

func TestAnalyzeArgs(t *testing.T) {
	if _, err := run(t, "analyze"); err == nil {
		t.Error("analyze with no input succeeded")
	}
	if _, err := run(t, "analyze", "a.fastq", "--url", "https://example.com/a.fastq.gz"); err == nil {
		t.Error("analyze with both path and --url succeeded")
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.refDir, "phix.sketch")
	out, err := run(t, "info", path)
	if err != nil {
		t.Fatal(err)
	}
	var infos []sketchInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d entries", len(infos))
	}
	got := infos[0]
	if got.Reference != "Phix" || got.KSize != 21 || got.Scaled != 10 || got.Checksum != "ok" || got.Hashes == 0 {
		t.Errorf("info = %+v", got)
	}
	if got.HashFunction != fqcomp.HashMurmur3.String() {
		t.Errorf("hash function = %q", got.HashFunction)
	}
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)
	db := filepath.Join(f.dir, "runs.db")
	fastq := filepath.Join(f.dir, "clean.fastq")
	writeFASTQ(t, fastq, f.ecoli)

	if _, err := f.analyze(t, fastq, "--db", db); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "history", "--db", db)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"source": "`+fastq+`"`) {
		t.Errorf("history output missing the run:\n%s", out)
	}
}
