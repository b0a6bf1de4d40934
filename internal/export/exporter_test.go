package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"synapsis/internal/neuron"
	"synapsis/internal/sim"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

// buildConnectedWorld returns a world holding cells A(1)→B(2) with one
// recorded edge and an isolated cell C(3).
func buildConnectedWorld(t *testing.T) *sim.World {
	t.Helper()
	w := sim.NewWorld(sim.Config{TotalSteps: 1, Workers: 1})
	reg := neuron.NewSynapseRegistry(nil)

	a := neuron.NewCell(1, sim.Vec3{0, 0, 0}, 2)
	b := neuron.NewCell(2, sim.Vec3{10, 0, 0}, 1)
	c := neuron.NewCell(3, sim.Vec3{20, 0, 0}, 0)
	for _, cell := range []*neuron.Cell{a, b, c} {
		if err := w.AddAgent(cell); err != nil {
			t.Fatalf("add cell: %v", err)
		}
	}
	if !reg.Connect(a, b, 0.5, 1, 498) {
		t.Fatalf("connect failed")
	}
	return w
}

func TestExportConnectedAndIsolatedRows(t *testing.T) {
	w := buildConnectedWorld(t)
	path := filepath.Join(t.TempDir(), "connection_list.csv")

	e := Exporter{Path: path}
	if _, err := e.Export(w); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"Source_UID", "Target_UID", "Cell_Type", "Synapse_Count"},
		{"1", "2", "2", "1"},
		{"3", "3", "0", "0"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected csv rows:\n got=%v\nwant=%v", rows, want)
	}
}

func TestExportIsolatedSentinelTarget(t *testing.T) {
	w := buildConnectedWorld(t)
	path := filepath.Join(t.TempDir(), "connection_list.csv")

	e := Exporter{Path: path, IsolatedTarget: "none"}
	if _, err := e.Export(w); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %v", rows)
	}
	if !reflect.DeepEqual(rows[2], []string{"3", "none", "0", "0"}) {
		t.Fatalf("unexpected isolated row: %v", rows[2])
	}
}

func TestExportSkipsDeadCells(t *testing.T) {
	w := sim.NewWorld(sim.Config{TotalSteps: 1, Workers: 1})
	reg := neuron.NewSynapseRegistry(nil)

	a := neuron.NewCell(1, sim.Vec3{}, 0)
	b := neuron.NewCell(2, sim.Vec3{}, 0)
	for _, cell := range []*neuron.Cell{a, b} {
		if err := w.AddAgent(cell); err != nil {
			t.Fatalf("add cell: %v", err)
		}
	}
	if !reg.Connect(a, b, 0.5, 1, 1) {
		t.Fatalf("connect failed")
	}
	a.SetState(neuron.StateDead)

	snap := Snapshot(w)
	if len(snap.Edges) != 0 {
		t.Fatalf("expected dead source's edges to be dropped, got %v", snap.Edges)
	}
	// B carries no outgoing record and its only incoming edge came from a
	// dead cell, so it exports as isolated.
	if len(snap.Isolated) != 1 || snap.Isolated[0].UID != 2 {
		t.Fatalf("unexpected isolated list: %v", snap.Isolated)
	}
}

func TestExportTargetOnlyCellGetsNoRow(t *testing.T) {
	w := buildConnectedWorld(t)
	snap := Snapshot(w)

	if len(snap.Edges) != 1 {
		t.Fatalf("expected one edge, got %v", snap.Edges)
	}
	// Cell 2 participates as a target, so it is neither an edge source
	// nor isolated.
	for _, cell := range snap.Isolated {
		if cell.UID == 2 {
			t.Fatal("target-only cell must not be listed as isolated")
		}
	}
}

func TestExportSortsEdgesBySourceThenTarget(t *testing.T) {
	w := sim.NewWorld(sim.Config{TotalSteps: 1, Workers: 1})
	reg := neuron.NewSynapseRegistry(nil)

	cells := make([]*neuron.Cell, 0, 4)
	for uid := sim.UID(1); uid <= 4; uid++ {
		cell := neuron.NewCell(uid, sim.Vec3{}, 0)
		cells = append(cells, cell)
		if err := w.AddAgent(cell); err != nil {
			t.Fatalf("add cell: %v", err)
		}
	}
	reg.Connect(cells[2], cells[3], 0.5, 1, 1) // 3→4
	reg.Connect(cells[0], cells[3], 0.5, 1, 1) // 1→4
	reg.Connect(cells[0], cells[1], 0.5, 1, 1) // 1→2

	snap := Snapshot(w)
	if len(snap.Edges) != 3 {
		t.Fatalf("expected three edges, got %v", snap.Edges)
	}
	order := [][2]int64{{1, 2}, {1, 4}, {3, 4}}
	for i, want := range order {
		if snap.Edges[i].Source != want[0] || snap.Edges[i].Target != want[1] {
			t.Fatalf("unexpected edge order at %d: %+v", i, snap.Edges[i])
		}
	}
}

func TestExportOpenFailureLeavesNoFile(t *testing.T) {
	w := buildConnectedWorld(t)
	path := filepath.Join(t.TempDir(), "missing-dir", "connection_list.csv")

	e := Exporter{Path: path}
	if _, err := e.Export(w); err == nil {
		t.Fatal("expected export to fail on an unwritable path")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestSnapshotCarriesCurrentStep(t *testing.T) {
	w := buildConnectedWorld(t)
	if err := w.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	snap := Snapshot(w)
	if snap.Step != 1 {
		t.Fatalf("expected snapshot at step 1, got %d", snap.Step)
	}
}
