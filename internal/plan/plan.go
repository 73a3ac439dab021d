// Package plan reads and validates authored plan files and materializes
// them into a fresh Progress Record.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

// SupportedVersions is the plan format constraint this build accepts.
const SupportedVersions = "^1"

// TaskSpec is one authored task in plan.yaml.
type TaskSpec struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	DependsOn   []string   `yaml:"depends_on,omitempty"`
	Estimate    state.Cost `yaml:"estimate,omitempty"`
}

// Plan is the authored input describing the full task graph.
type Plan struct {
	Version string     `yaml:"version"`
	Tasks   []TaskSpec `yaml:"tasks"`
}

// PlanPath returns the location of the plan file under basePath.
func PlanPath(basePath string) string {
	return filepath.Join(basePath, ".stride", "plan.yaml")
}

// Load reads and validates the plan file under basePath.
func Load(basePath string) (*Plan, error) {
	return LoadFile(PlanPath(basePath))
}

// LoadFile reads and validates a plan from an explicit path.
func LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the format version and the task graph. Graph rules
// (unique parseable ids, dependencies present and strictly lower) are
// enforced by loading the materialized record.
func (p *Plan) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("plan is missing a version")
	}
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return fmt.Errorf("invalid plan version %q: %w", p.Version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("failed to parse version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unsupported plan version %s (supported: %s)", p.Version, SupportedVersions)
	}

	if len(p.Tasks) == 0 {
		return fmt.Errorf("plan contains no tasks")
	}
	if _, err := graph.Load(p.Record()); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	return nil
}

// Record materializes the plan as a fresh Progress Record with every
// task pending and no session history.
func (p *Plan) Record() *state.Record {
	rec := &state.Record{Tasks: make([]state.TaskRecord, 0, len(p.Tasks))}
	now := time.Now().UTC()
	for _, t := range p.Tasks {
		rec.Tasks = append(rec.Tasks, state.TaskRecord{
			ID:          t.ID,
			Description: t.Description,
			DependsOn:   t.DependsOn,
			Status:      state.StatusPending,
			Estimate:    t.Estimate,
			UpdatedAt:   now,
		})
	}
	return rec
}

// ErrRecordExists is returned by Import when a Progress Record already
// holds progress and force was not given.
type ErrRecordExists struct {
	Path string
}

func (e *ErrRecordExists) Error() string {
	return fmt.Sprintf("progress record %s already exists; re-import with --force to discard it", e.Path)
}

// Import validates the plan under basePath and writes a fresh Progress
// Record through store. An existing record is only overwritten when
// force is set.
func Import(store *state.Store, basePath string, force bool) (*Plan, error) {
	return ImportFile(store, PlanPath(basePath), force)
}

// ImportFile is Import for a plan at an explicit path.
func ImportFile(store *state.Store, path string, force bool) (*Plan, error) {
	p, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if store.RecordExists() && !force {
		return nil, &ErrRecordExists{Path: store.RecordPath()}
	}
	if err := store.SaveRecord(p.Record()); err != nil {
		return nil, err
	}
	return p, nil
}
