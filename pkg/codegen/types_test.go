package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsAdd(t *testing.T) {
	s := Stats{PermissionsAdded: 1, SourcesPlaced: 2}
	s.Add(Stats{PermissionsAdded: 2, ServicesAdded: 1, DependenciesAdded: 3, FunctionsRegistered: 4, FilesChanged: 1})
	s.Add(Stats{})

	assert.Equal(t, Stats{
		PermissionsAdded:    3,
		ServicesAdded:       1,
		DependenciesAdded:   3,
		SourcesPlaced:       2,
		FunctionsRegistered: 4,
		FilesChanged:        1,
	}, s)
}

func TestCompilationResultSuccess(t *testing.T) {
	tests := []struct {
		name   string
		result *CompilationResult
		want   bool
	}{
		{name: "nil", result: nil, want: false},
		{name: "succeeded", result: &CompilationResult{Status: StatusSucceeded}, want: true},
		{name: "failed", result: &CompilationResult{Status: StatusFailed, Error: "boom"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Success())
		})
	}
}
