package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapSQLSizesVectorColumn(t *testing.T) {
	script, err := bootstrapSQL(3072)
	require.NoError(t, err)

	assert.Contains(t, script, "vector(3072)")
	assert.NotContains(t, script, embedDimPlaceholder)
	assert.Contains(t, script, "cosine_similarity")
}

func TestBootstrapSQLDefaultDimension(t *testing.T) {
	script, err := bootstrapSQL(0)
	require.NoError(t, err)

	assert.Contains(t, script, "vector(1536)")
	assert.NotContains(t, script, embedDimPlaceholder)
}
