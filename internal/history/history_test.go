package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tamirms/fqcomp"
	fqerrors "github.com/tamirms/fqcomp/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	res := &fqcomp.Result{
		Source:       "a.fastq.gz",
		ReadsSampled: 50000,
		Composition: fqcomp.Composition{
			{Name: "Phix", Fraction: 0.12},
			{Name: "E Coli", Fraction: 0.8},
		},
		UnknownContent:       0.08,
		IsContaminated:       true,
		ContaminationWarning: "PhiX spike-in detected",
	}
	if _, err := s.RecordResult(ctx, res); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	report := fqcomp.NewErrorReport("b.fastq", fqerrors.ErrNoReads)
	if _, err := s.RecordError(ctx, report); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}

	// Newest first.
	if entries[0].Error == nil || entries[0].Error.Kind != "no_reads" {
		t.Errorf("entries[0].Error = %+v, want kind no_reads", entries[0].Error)
	}
	if entries[0].Result != nil {
		t.Error("error entry carries a Result")
	}

	got := entries[1].Result
	if got == nil {
		t.Fatal("entries[1].Result is nil")
	}
	if got.Source != res.Source || got.ReadsSampled != res.ReadsSampled || !got.IsContaminated {
		t.Errorf("round-tripped result = %+v", got)
	}
	if names := got.Composition.Names(); len(names) != 2 || names[0] != "Phix" || names[1] != "E Coli" {
		t.Errorf("composition order = %v, want [Phix E Coli]", names)
	}
	if !entries[1].CreatedAt.Before(entries[0].CreatedAt) {
		t.Errorf("timestamps not ordered: %v, %v", entries[1].CreatedAt, entries[0].CreatedAt)
	}
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for range 5 {
		if _, err := s.RecordError(ctx, fqcomp.NewErrorReport("x", errors.New("boom"))); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("Recent(3) returned %d entries", len(entries))
	}
	if entries[0].Error.Kind != "internal" {
		t.Errorf("kind = %q, want internal", entries[0].Error.Kind)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordError(ctx, fqcomp.NewErrorReport("x", fqerrors.ErrEmptySketch)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	entries, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after reopen, want 1", len(entries))
	}
}
