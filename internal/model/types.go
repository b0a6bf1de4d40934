package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one completed simulation run.
type RunRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	Seed         int64  `json:"seed"`
	Steps        int64  `json:"steps"`
	Workers      int    `json:"workers"`
	CellCount    int    `json:"cell_count"`
	SegmentCount int    `json:"segment_count"`
	EdgeCount    int    `json:"edge_count"`
	CSVPath      string `json:"csv_path,omitempty"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// EdgeRecord is one directed connection between two cells, with the
// source cell's type and the number of synapse records behind it.
type EdgeRecord struct {
	Source   int64 `json:"source"`
	Target   int64 `json:"target"`
	CellType int   `json:"cell_type"`
	Count    int   `json:"count"`
}

// CellRecord identifies a cell that participates in no connection.
type CellRecord struct {
	UID      int64 `json:"uid"`
	CellType int   `json:"cell_type"`
}

// ConnectivitySnapshot is the exported state of the synapse registry at
// one point in a run.
type ConnectivitySnapshot struct {
	VersionedRecord
	RunID    string       `json:"run_id"`
	Step     int64        `json:"step"`
	Edges    []EdgeRecord `json:"edges"`
	Isolated []CellRecord `json:"isolated"`
}
