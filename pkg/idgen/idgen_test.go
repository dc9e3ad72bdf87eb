package idgen_test

import (
	"testing"

	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UsesEntityPrefix(t *testing.T) {
	tests := []struct {
		entity idgen.Entity
		prefix string
	}{
		{idgen.Workflows, "wfl_"},
		{idgen.Nodes, "nd_"},
		{idgen.Connections, "conn_"},
	}

	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			id := idgen.New(tt.entity)

			assert.Len(t, id, len(tt.prefix)+idgen.DefaultLength)
			assert.Equal(t, tt.prefix, id[:len(tt.prefix)])
			assert.True(t, idgen.HasPrefix(id, tt.entity))
		})
	}
}

func TestGenerate_CustomLength(t *testing.T) {
	id, err := idgen.Generate(idgen.Nodes, 12)
	require.NoError(t, err)
	assert.Len(t, id, len("nd_")+12)
}

func TestGenerate_UnknownEntity(t *testing.T) {
	_, err := idgen.Generate("users", idgen.DefaultLength)
	assert.Error(t, err)

	assert.Panics(t, func() { idgen.New("users") })
	assert.False(t, idgen.HasPrefix("usr_abc", "users"))
}

func TestNew_IsRandom(t *testing.T) {
	seen := make(map[string]struct{}, 100)

	for range 100 {
		seen[idgen.New(idgen.Workflows)] = struct{}{}
	}

	assert.Greater(t, len(seen), 95)
}
