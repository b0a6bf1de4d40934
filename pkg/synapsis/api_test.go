package synapsis

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunProducesCSVAndPersistsArtifacts(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	outPath := filepath.Join(t.TempDir(), "connection_list.csv")

	summary, err := client.Run(ctx, RunRequest{
		Cells:   4,
		Steps:   5,
		Seed:    151,
		Workers: 2,
		OutPath: outPath,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if summary.Cells != 4 || summary.Steps != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// Each growth cone extends its chain by one segment per step.
	wantSegments := 4 + 4*5
	if summary.Segments != wantSegments {
		t.Fatalf("expected %d segments, got %d", wantSegments, summary.Segments)
	}

	file, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) == 0 || rows[0][0] != "Source_UID" {
		t.Fatalf("expected header row, got %v", rows)
	}

	runs, err := client.Runs(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Fatalf("unexpected run list: %+v", runs)
	}
	if runs[0].EdgeCount != summary.Edges || runs[0].SegmentCount != summary.Segments {
		t.Fatalf("run record does not match summary: %+v vs %+v", runs[0], summary)
	}
}

func TestClientRunIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	dir := t.TempDir()

	first, err := client.Run(ctx, RunRequest{
		Cells: 6, Steps: 8, Seed: 42, Workers: 1,
		Spread:  3,
		OutPath: filepath.Join(dir, "a.csv"),
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, RunRequest{
		Cells: 6, Steps: 8, Seed: 42, Workers: 1,
		Spread:  3,
		OutPath: filepath.Join(dir, "b.csv"),
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Edges != second.Edges || first.Isolated != second.Isolated {
		t.Fatalf("expected identical connectivity for one seed: %+v vs %+v", first, second)
	}

	a, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "b.csv"))
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected byte-identical exports for one seed")
	}
}

func TestClientExportReEmitsStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	dir := t.TempDir()
	runPath := filepath.Join(dir, "run.csv")

	summary, err := client.Run(ctx, RunRequest{
		Cells: 3, Steps: 4, Seed: 7, Workers: 1, OutPath: runPath,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	exportPath := filepath.Join(dir, "replay.csv")
	if err := client.Export(ctx, ExportRequest{RunID: summary.RunID, OutPath: exportPath}); err != nil {
		t.Fatalf("export: %v", err)
	}

	orig, err := os.ReadFile(runPath)
	if err != nil {
		t.Fatalf("read run csv: %v", err)
	}
	replay, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read replay csv: %v", err)
	}
	if string(orig) != string(replay) {
		t.Fatal("expected re-export to reproduce the original csv")
	}
}

func TestClientExportUnknownRun(t *testing.T) {
	client := newTestClient(t)
	err := client.Export(context.Background(), ExportRequest{RunID: "no-such-run"})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestClientConnectivityAndReset(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{
		Cells: 3, Steps: 4, Seed: 11, Workers: 1,
		OutPath: filepath.Join(t.TempDir(), "out.csv"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	snap, err := client.Connectivity(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("connectivity: %v", err)
	}
	if snap.RunID != summary.RunID || int(snap.Step) != 4 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Edges) != summary.Edges || len(snap.Isolated) != summary.Isolated {
		t.Fatalf("snapshot does not match summary: %+v vs %+v", snap, summary)
	}

	if err := client.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := client.Runs(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %+v", runs)
	}
	if _, err := client.Connectivity(ctx, summary.RunID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound after reset, got %v", err)
	}
}

func TestClientRunRejectsNegativeCells(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Run(context.Background(), RunRequest{Cells: -1}); err == nil {
		t.Fatal("expected validation error")
	}
}
