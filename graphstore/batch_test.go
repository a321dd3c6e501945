package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rowsOf(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{"i": i}
	}
	return rows
}

func TestChunk_SplitsIntoBoundedGroups(t *testing.T) {
	chunks := Chunk(rowsOf(1205), MaxUnwindRows)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 205)
}

func TestChunk_SizeZeroReturnsOneChunk(t *testing.T) {
	chunks := Chunk(rowsOf(10), 0)
	assert.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 10)
}

func TestChunk_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, Chunk(nil, 10))
	assert.Nil(t, Chunk(rowsOf(0), 0))
}

func TestChunk_ExactMultipleOfSize(t *testing.T) {
	chunks := Chunk(rowsOf(1000), 500)
	assert.Len(t, chunks, 2)
}
