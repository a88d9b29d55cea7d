package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandString(t *testing.T) {
	a := RandString(20)
	b := RandString(20)

	assert.Len(t, a, 20)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.Contains(t, letters, string(r))
	}
}
