package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestShort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0190a3b4", Short("0190A3B4-1111-7000-8000-000000000000"))
	assert.Equal(t, "run-abcd", Short("run-abcdefgh"))
	assert.Equal(t, "r1", Short("r1"))
}
