package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDSlice(t *testing.T) {
	ids := NewIDSlice([]ID{3, 1, 2})
	assert.Equal(t, IDSlice{1, 2, 3}, ids)
	assert.True(t, ids.Valid())
	assert.True(t, ids.Contains(1, 3))
	assert.False(t, ids.Contains(4))
	assert.Equal(t, IDSlice{1, 3}, ids.Remove(2))
	assert.Equal(t, "1, 2, 3", ids.String())

	assert.False(t, IDSlice{1, 1}.Valid())
	assert.False(t, IDSlice{0, 1}.Valid())
	assert.False(t, IDSlice{2, 1}.Valid())
}
