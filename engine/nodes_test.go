package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterByTags(t *testing.T) {
	directory := []nodeInfo{
		{ID: "plain"},
		{ID: "gpu", Tags: []string{"gpu"}},
		{ID: "gpu-eu", Tags: []string{"gpu", "eu"}},
		{ID: "cpu-eu", Tags: []string{"cpu", "eu"}},
	}

	tests := []struct {
		name     string
		required []string
		wantIDs  []string
	}{
		{
			name:     "no required tags matches everything",
			required: nil,
			wantIDs:  []string{"plain", "gpu", "gpu-eu", "cpu-eu"},
		},
		{
			name:     "single tag",
			required: []string{"gpu"},
			wantIDs:  []string{"gpu", "gpu-eu"},
		},
		{
			name:     "multiple tags require set containment",
			required: []string{"gpu", "eu"},
			wantIDs:  []string{"gpu-eu"},
		},
		{
			name:     "duplicate required tags do not demand multiplicity",
			required: []string{"eu", "eu"},
			wantIDs:  []string{"gpu-eu", "cpu-eu"},
		},
		{
			name:     "unknown tag matches nothing",
			required: []string{"tpu"},
			wantIDs:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := filterByTags(directory, tt.required)

			ids := make([]string, 0, len(matched))
			for _, n := range matched {
				ids = append(ids, n.ID)
			}

			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilterByTags_ReturnsCopy(t *testing.T) {
	directory := []nodeInfo{{ID: "a"}, {ID: "b"}}

	matched := filterByTags(directory, nil)
	matched[0] = nodeInfo{ID: "mutated"}

	assert.Equal(t, "a", directory[0].ID)
}
