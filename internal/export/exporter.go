// Package export serializes the synapse registry into CSV connection
// lists and storable connectivity snapshots.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"synapsis/internal/model"
	"synapsis/internal/neuron"
	"synapsis/internal/sim"
)

// Fixed output names per deployment variant.
const (
	ConnectionListFile     = "connection_list.csv"
	AdjacencyMatrixAllFile = "adjacency_matrix_all.csv"
)

// Header is the CSV header row.
var Header = []string{"Source_UID", "Target_UID", "Cell_Type", "Synapse_Count"}

// Exporter dumps the connectivity graph accumulated by the synapse
// registry. It is invoked once, after the simulation loop completes, with
// no concurrent writers.
type Exporter struct {
	// Path is the output file; defaults to ConnectionListFile.
	Path string
	// IsolatedTarget, when non-empty, replaces the target column of
	// isolated-cell rows. The default keeps the legacy shape in which an
	// isolated cell repeats its own UID as target.
	IsolatedTarget string
	Logger         *zerolog.Logger
}

// Snapshot walks all live agents and collects the connectivity state:
// one edge record per distinct (source, target) pair among non-dead
// cells, plus one record per cell that participates in no connection at
// all. Edges and isolated cells are sorted for stable output.
func Snapshot(w *sim.World) model.ConnectivitySnapshot {
	type pair struct {
		src, dst int64
	}
	adjacency := make(map[pair]int)
	cellTypes := make(map[int64]int)
	connected := make(map[int64]bool)

	w.ForEachAgent(func(a sim.Agent) {
		cell, ok := a.(*neuron.Cell)
		if !ok || cell.State() == neuron.StateDead {
			return
		}
		uid := int64(cell.UID())
		cellTypes[uid] = cell.Type()
		for _, syn := range cell.Synapses() {
			adjacency[pair{uid, int64(syn.Target)}]++
			connected[uid] = true
			connected[int64(syn.Target)] = true
		}
	})

	snap := model.ConnectivitySnapshot{Step: w.CurrentStep()}
	for p, count := range adjacency {
		snap.Edges = append(snap.Edges, model.EdgeRecord{
			Source:   p.src,
			Target:   p.dst,
			CellType: cellTypes[p.src],
			Count:    count,
		})
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].Source != snap.Edges[j].Source {
			return snap.Edges[i].Source < snap.Edges[j].Source
		}
		return snap.Edges[i].Target < snap.Edges[j].Target
	})

	for uid, cellType := range cellTypes {
		if !connected[uid] {
			snap.Isolated = append(snap.Isolated, model.CellRecord{UID: uid, CellType: cellType})
		}
	}
	sort.Slice(snap.Isolated, func(i, j int) bool { return snap.Isolated[i].UID < snap.Isolated[j].UID })

	return snap
}

// Export snapshots the world and writes the CSV connection list. On
// failure to open the output target it logs and returns the error
// without leaving a partial file behind.
func (e *Exporter) Export(w *sim.World) (model.ConnectivitySnapshot, error) {
	snap := Snapshot(w)
	return snap, e.WriteSnapshot(snap)
}

// WriteSnapshot emits a previously captured snapshot as CSV.
func (e *Exporter) WriteSnapshot(snap model.ConnectivitySnapshot) error {
	log := zerolog.Nop()
	if e.Logger != nil {
		log = *e.Logger
	}
	path := e.Path
	if path == "" {
		path = ConnectionListFile
	}

	file, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open connectivity output")
		return fmt.Errorf("open connectivity output: %w", err)
	}

	writer := csv.NewWriter(file)
	writeErr := writeRows(writer, snap, e.IsolatedTarget)
	if writeErr == nil {
		writer.Flush()
		writeErr = writer.Error()
	}
	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		// Do not leave an ambiguous partial file.
		_ = os.Remove(path)
		log.Error().Err(writeErr).Str("path", path).Msg("failed to write connectivity output")
		return fmt.Errorf("write connectivity output: %w", writeErr)
	}

	log.Info().Str("path", path).
		Int("edges", len(snap.Edges)).
		Int("isolated", len(snap.Isolated)).
		Msg("connectivity exported")
	return nil
}

func writeRows(w *csv.Writer, snap model.ConnectivitySnapshot, isolatedTarget string) error {
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, edge := range snap.Edges {
		row := []string{
			strconv.FormatInt(edge.Source, 10),
			strconv.FormatInt(edge.Target, 10),
			strconv.Itoa(edge.CellType),
			strconv.Itoa(edge.Count),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	for _, cell := range snap.Isolated {
		target := strconv.FormatInt(cell.UID, 10)
		if isolatedTarget != "" {
			target = isolatedTarget
		}
		row := []string{
			strconv.FormatInt(cell.UID, 10),
			target,
			strconv.Itoa(cell.CellType),
			"0",
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
