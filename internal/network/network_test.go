package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	known := []string{"203.0.113.0/24", "198.51.100.0/24"}
	assert.True(t, Contains(known, "203.0.113.55"))
	assert.False(t, Contains(known, "192.0.2.1"))
}

func TestAddDeduplicates(t *testing.T) {
	known := []string{"203.0.113.0/24"}
	known = Add(known, "203.0.113.0/24")
	assert.Len(t, known, 1)
	known = Add(known, "198.51.100.0/24")
	assert.Len(t, known, 2)
}

func TestRemove(t *testing.T) {
	known := []string{"a", "b", "c"}
	out := Remove(known, []string{"b"})
	assert.Equal(t, []string{"a", "c"}, out)
}
