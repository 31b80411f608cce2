package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUUID(t *testing.T) {
	id := New()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix(PrefixSettings)
	assert.True(t, strings.HasPrefix(id, "cs_"))
	assert.Len(t, id, len("cs_")+32)
	assert.NotContains(t, strings.TrimPrefix(id, "cs_"), "-")
}

func TestWithPrefixUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := WithPrefix(PrefixAudit)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
