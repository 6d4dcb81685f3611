package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
pre_model_sync:
  - p.rename_columns
post_model_sync:
  - p.seed
  - "  "
  - "p.seed #rerun after fixing data"
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"p.rename_columns"}, m.PreModelSync)
	assert.Equal(t, []string{"p.seed", "p.seed #rerun after fixing data"}, m.PostModelSync)
	assert.Equal(t, []string{"p.rename_columns", "p.seed", "p.seed #rerun after fixing data"}, m.All())
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{name: "duplicate line", yaml: "post_model_sync: [p.a, p.a]", errMsg: `patch "p.a" listed twice`},
		{name: "duplicate across sections", yaml: "pre_model_sync: [p.a]\npost_model_sync: [p.a]", errMsg: `patch "p.a" listed twice`},
		{name: "comment only", yaml: "post_model_sync: ['#just a note']", errMsg: `patch manifest line "#just a note" has no identifier`},
		{name: "not yaml", yaml: "post_model_sync: [", errMsg: "parse patch manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
