package download

import (
	"os"
	"path/filepath"
	"testing"

	"eldersvr-cli/internal/progress"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state", "downloads.db"))
	if err != nil {
		t.Fatalf("OpenLedger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func writeAsset(t *testing.T, dir, name, content string) Task {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return Task{
		URL:       "https://cdn.example.com/" + name,
		LocalPath: p,
		Filename:  name,
		Category:  progress.CategoryVideoHigh,
	}
}

func TestLedgerRecordAndLookup(t *testing.T) {
	l := openTestLedger(t)
	dir := t.TempDir()
	task := writeAsset(t, dir, "highres_1.mp4", "video body")

	if err := l.RecordDownload(task); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	rec, err := l.Lookup("highres_1.mp4")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Size != int64(len("video body")) || rec.Hash == "" {
		t.Errorf("unexpected record: %+v", rec)
	}

	missing, err := l.Lookup("never_seen.mp4")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown file, got %+v", missing)
	}
}

func TestLedgerRecordUpsertsOnRedownload(t *testing.T) {
	l := openTestLedger(t)
	dir := t.TempDir()

	task := writeAsset(t, dir, "highres_1.mp4", "first")
	if err := l.RecordDownload(task); err != nil {
		t.Fatal(err)
	}
	first, _ := l.Lookup("highres_1.mp4")

	if err := os.WriteFile(task.LocalPath, []byte("second version"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordDownload(task); err != nil {
		t.Fatal(err)
	}
	second, _ := l.Lookup("highres_1.mp4")

	if first.Hash == second.Hash {
		t.Error("hash should change after re-download")
	}

	count, size, err := l.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if count != 1 {
		t.Errorf("re-download must not duplicate records, count = %d", count)
	}
	if size != int64(len("second version")) {
		t.Errorf("size = %d", size)
	}
}

func TestLedgerVerifyFile(t *testing.T) {
	l := openTestLedger(t)
	dir := t.TempDir()
	task := writeAsset(t, dir, "thumb_1.jpg", "thumbnail bytes")

	if err := l.RecordDownload(task); err != nil {
		t.Fatal(err)
	}

	ok, err := l.VerifyFile("thumb_1.jpg", task.LocalPath)
	if err != nil || !ok {
		t.Errorf("expected intact file to verify, ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(task.LocalPath, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}
	ok, err = l.VerifyFile("thumb_1.jpg", task.LocalPath)
	if err != nil {
		t.Fatalf("VerifyFile failed: %v", err)
	}
	if ok {
		t.Error("tampered file must not verify")
	}

	ok, err = l.VerifyFile("unknown.jpg", task.LocalPath)
	if err != nil || ok {
		t.Errorf("unknown file should return false without error, ok=%v err=%v", ok, err)
	}
}

func TestLedgerReset(t *testing.T) {
	l := openTestLedger(t)
	dir := t.TempDir()

	for _, name := range []string{"a.mp4", "b.mp4"} {
		if err := l.RecordDownload(writeAsset(t, dir, name, name)); err != nil {
			t.Fatal(err)
		}
	}

	if err := l.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	count, _, err := l.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty ledger after reset, count = %d", count)
	}
}
