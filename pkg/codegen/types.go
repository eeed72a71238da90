package codegen

import (
	"time"
)

// Status represents the outcome of a compilation run
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// CompilationResult represents the result of a compilation run
type CompilationResult struct {
	RunID          string
	Status         Status
	Plugins        []string // Plugin names in registration order
	GeneratedFiles []string // Every path written or confirmed up to date
	Warnings       []string // Non-fatal problems, e.g. sources without a namespace
	Stats          Stats
	Duration       time.Duration
	Error          string
}

// Success reports whether the run completed without error
func (r *CompilationResult) Success() bool {
	return r != nil && r.Status == StatusSucceeded
}

// Stats counts what a compilation contributed to the project
type Stats struct {
	PermissionsAdded    int
	ServicesAdded       int
	ServicesUpdated     int
	DependenciesAdded   int
	SourcesPlaced       int
	FunctionsRegistered int
	FilesChanged        int
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.PermissionsAdded += other.PermissionsAdded
	s.ServicesAdded += other.ServicesAdded
	s.ServicesUpdated += other.ServicesUpdated
	s.DependenciesAdded += other.DependenciesAdded
	s.SourcesPlaced += other.SourcesPlaced
	s.FunctionsRegistered += other.FunctionsRegistered
	s.FilesChanged += other.FilesChanged
}

// FileDiff is the pending change to one project file, as a unified patch
type FileDiff struct {
	Path  string
	Patch string
}
