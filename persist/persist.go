// Package persist implements the versioned on-disk graph format (spec
// §6.2): round-trip serialization of a *graph.Model, including the
// hazard state needed to resume a trace session. Format is YAML,
// matching the versioned-config idiom the pack's config-heavy repos use
// for their own on-disk records.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tasklab/tasklab/graph"
	"github.com/tasklab/tasklab/internal/cerr"
	"gopkg.in/yaml.v3"
)

// ErrIO is returned when Save or Load cannot open its target, or when
// Load is given a document with an unsupported Version.
const ErrIO cerr.Error = "persist: io error"

// currentVersion is the only Version this implementation will Load.
// Open Question (b) is resolved by picking one numbering and rejecting
// anything else rather than guessing v02/v03 wire compatibility.
const currentVersion = 1

// DefaultTempDir is the fixed path auto-persisted failing graphs are
// written under (spec §6.3).
const DefaultTempDir = "/tmp/tasklab"

// dependencyRecord is the YAML-safe rendering of a graph.Dependency.
type dependencyRecord struct {
	TaskID int        `yaml:"task_id"`
	Mode   graph.Mode `yaml:"mode"`
	DepID  int        `yaml:"dep_id"`
	VarID  int        `yaml:"var_id"`
}

// taskRecord is the YAML-safe rendering of a graph.Task.
type taskRecord struct {
	ID           int                `yaml:"id"`
	Predecessors []dependencyRecord `yaml:"predecessors"`
	Successors   []dependencyRecord `yaml:"successors"`
	Exec         float64            `yaml:"exec"`
}

// hazardEndpointRecord is the YAML-safe rendering of a
// graph.HazardEndpoint.
type hazardEndpointRecord struct {
	TaskID int `yaml:"task_id"`
	DepID  int `yaml:"dep_id"`
	VarID  int `yaml:"var_id"`
}

// Record is the versioned on-disk document. VarPtr-keyed maps are
// rendered with decimal-string keys since YAML mapping keys must be
// scalars and a uint64 round-trips losslessly through its decimal
// string form, unlike through a YAML integer node on some decoders.
type Record struct {
	Version int `yaml:"version"`

	Tasks []taskRecord `yaml:"tasks"`

	NTasks int `yaml:"ntasks"`
	NDeps  int `yaml:"ndeps"`
	NVar   int `yaml:"nvar"`

	DepRange int     `yaml:"dep_range"`
	ExecBase float64 `yaml:"exec_base"`
	MaxR     float64 `yaml:"max_r"`

	LL []uint64 `yaml:"ll,omitempty"`

	OutMap map[string]hazardEndpointRecord   `yaml:"out_map,omitempty"`
	InMap  map[string][]hazardEndpointRecord `yaml:"in_map,omitempty"`
}

// Save writes m to path as a version-1 Record, creating or truncating
// the file and any missing parent directory.
func Save(path string, m *graph.Model) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrIO, path, err)
	}

	rec := toRecord(m)

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrIO, path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrIO, path, err)
	}
	return nil
}

// Load reads and decodes path, rejecting any document whose Version is
// not 1.
func Load(path string) (*graph.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrIO, path, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrIO, path, err)
	}

	if rec.Version != currentVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d, want %d", ErrIO, path, rec.Version, currentVersion)
	}

	return fromRecord(&rec), nil
}

func toRecord(m *graph.Model) *Record {
	rec := &Record{
		Version:  currentVersion,
		Tasks:    make([]taskRecord, len(m.Tasks)),
		NTasks:   m.NTasks,
		NDeps:    m.NDeps,
		NVar:     m.NVar,
		DepRange: m.DepRange,
		ExecBase: m.ExecBase,
		MaxR:     m.MaxR,
		LL:       m.LL,
	}

	for i, t := range m.Tasks {
		rec.Tasks[i] = taskRecord{
			ID:           t.ID,
			Predecessors: toDependencyRecords(t.Predecessors),
			Successors:   toDependencyRecords(t.Successors),
			Exec:         t.Exec,
		}
	}

	if len(m.OutMap) > 0 {
		rec.OutMap = make(map[string]hazardEndpointRecord, len(m.OutMap))
		for ptr, he := range m.OutMap {
			rec.OutMap[varPtrKey(ptr)] = hazardEndpointRecord(he)
		}
	}
	if len(m.InMap) > 0 {
		rec.InMap = make(map[string][]hazardEndpointRecord, len(m.InMap))
		for ptr, hes := range m.InMap {
			list := make([]hazardEndpointRecord, len(hes))
			for i, he := range hes {
				list[i] = hazardEndpointRecord(he)
			}
			rec.InMap[varPtrKey(ptr)] = list
		}
	}

	return rec
}

func fromRecord(rec *Record) *graph.Model {
	m := &graph.Model{
		Tasks:    make([]graph.Task, len(rec.Tasks)),
		NTasks:   rec.NTasks,
		NDeps:    rec.NDeps,
		NVar:     rec.NVar,
		DepRange: rec.DepRange,
		ExecBase: rec.ExecBase,
		MaxR:     rec.MaxR,
		LL:       rec.LL,
	}

	for i, t := range rec.Tasks {
		m.Tasks[i] = graph.Task{
			ID:           t.ID,
			Predecessors: fromDependencyRecords(t.Predecessors),
			Successors:   fromDependencyRecords(t.Successors),
			Exec:         t.Exec,
		}
	}

	if len(rec.OutMap) > 0 {
		m.OutMap = make(map[uint64]graph.HazardEndpoint, len(rec.OutMap))
		for key, he := range rec.OutMap {
			ptr, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				continue
			}
			m.OutMap[ptr] = graph.HazardEndpoint(he)
		}
	}
	if len(rec.InMap) > 0 {
		m.InMap = make(map[uint64][]graph.HazardEndpoint, len(rec.InMap))
		for key, hes := range rec.InMap {
			ptr, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				continue
			}
			list := make([]graph.HazardEndpoint, len(hes))
			for i, he := range hes {
				list[i] = graph.HazardEndpoint(he)
			}
			m.InMap[ptr] = list
		}
	}

	return m
}

func toDependencyRecords(deps []graph.Dependency) []dependencyRecord {
	if deps == nil {
		return nil
	}
	out := make([]dependencyRecord, len(deps))
	for i, d := range deps {
		out[i] = dependencyRecord(d)
	}
	return out
}

// fromDependencyRecords decodes an empty list as nil, the form the
// generator leaves for a task with no edges on that side, since YAML
// writes a nil slice as an empty list.
func fromDependencyRecords(recs []dependencyRecord) []graph.Dependency {
	if len(recs) == 0 {
		return nil
	}
	out := make([]graph.Dependency, len(recs))
	for i, r := range recs {
		out[i] = graph.Dependency(r)
	}
	return out
}

func varPtrKey(ptr uint64) string {
	return strconv.FormatUint(ptr, 10)
}
