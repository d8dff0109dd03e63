package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"partnermap/internal/domain/partner"
	"partnermap/internal/usecase/partnerimport"
)

type recordingSubmitter struct {
	uploads []partnerimport.Upload
}

func (r *recordingSubmitter) Submit(_ context.Context, upload partnerimport.Upload) (partner.ImportJob, error) {
	r.uploads = append(r.uploads, upload)
	return partner.ImportJob{ID: upload.FileName, OriginalFileName: upload.FileName}, nil
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestUploadWatcherWaitsForQuietPeriod(t *testing.T) {
	dir := t.TempDir()
	clk := clocktesting.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	sub := &recordingSubmitter{}
	w := newUploadWatcher(sub, clk, 2*time.Second)

	path := filepath.Join(dir, "partners.csv")
	writeFile(t, path, "name,country,city\nA,B,C\n")
	w.touch(path)

	clk.Step(time.Second)
	if jobs := w.flush(context.Background()); len(jobs) != 0 {
		t.Fatalf("flush before quiet period submitted %d jobs", len(jobs))
	}

	w.touch(path)
	clk.Step(1500 * time.Millisecond)
	if jobs := w.flush(context.Background()); len(jobs) != 0 {
		t.Fatalf("a later write must restart the quiet period")
	}

	clk.Step(time.Second)
	jobs := w.flush(context.Background())
	if len(jobs) != 1 || len(sub.uploads) != 1 || sub.uploads[0].FileName != "partners.csv" {
		t.Fatalf("jobs = %+v, uploads = %+v", jobs, sub.uploads)
	}
}

func TestUploadWatcherSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	clk := clocktesting.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	sub := &recordingSubmitter{}
	w := newUploadWatcher(sub, clk, time.Second)

	path := filepath.Join(dir, "partners.csv")
	writeFile(t, path, "v1")

	for i := 0; i < 2; i++ {
		w.touch(path)
		clk.Step(time.Second)
		w.flush(context.Background())
	}
	if len(sub.uploads) != 1 {
		t.Fatalf("uploads = %d, want identical content submitted once", len(sub.uploads))
	}

	writeFile(t, path, "v2")
	w.touch(path)
	clk.Step(time.Second)
	w.flush(context.Background())
	if len(sub.uploads) != 2 || string(sub.uploads[1].Data) != "v2" {
		t.Fatalf("uploads = %+v, want changed content resubmitted", sub.uploads)
	}
}

func TestUploadWatcherIgnoresUnsupportedAndRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	clk := clocktesting.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	sub := &recordingSubmitter{}
	w := newUploadWatcher(sub, clk, time.Second)

	notes := filepath.Join(dir, "notes.pdf")
	writeFile(t, notes, "%PDF")
	w.touch(notes)

	gone := filepath.Join(dir, "gone.csv")
	writeFile(t, gone, "x")
	w.touch(gone)
	if err := os.Remove(gone); err != nil {
		t.Fatalf("remove: %v", err)
	}

	clk.Step(time.Second)
	if jobs := w.flush(context.Background()); len(jobs) != 0 || len(sub.uploads) != 0 {
		t.Fatalf("jobs = %+v, uploads = %+v, want none", jobs, sub.uploads)
	}
}
