package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert.Equal(t, "unknown identifier 'y'", From("unknown identifier '%v'", "y"))
	assert.Equal(t, "limit is 16", From("limit is %v", 16))
	assert.Equal(t, "plain", From("plain"))
}

func TestFromIntegersUngrouped(t *testing.T) {
	assert.Equal(t, "rule 1024", From("rule %v", 1024))
	assert.Equal(t, "line 12345:7", From("line %d:%d", 12345, 7))
	assert.Equal(t, "offset -65534", From("offset %d", int64(-65534)))
	assert.Equal(t, "0x400", From("%#x", uint16(1024)))
	assert.Equal(t, "[   42]", From("[%5d]", 42))
}
