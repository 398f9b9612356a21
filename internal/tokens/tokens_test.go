package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic(t *testing.T) {
	var c Counter = Heuristic{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("hi"))
	assert.Equal(t, 25, c.Count(string(make([]byte, 100))))
}

func TestNewHeuristicEncoding(t *testing.T) {
	c := New("heuristic", nil)
	_, ok := c.(Heuristic)
	assert.True(t, ok)
}

func TestNewUnknownEncodingFallsBack(t *testing.T) {
	c := New("no-such-encoding", nil)
	_, ok := c.(Heuristic)
	assert.True(t, ok)
}
