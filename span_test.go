package momoscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanString(t *testing.T) {
	s := Span{StartLine: 3, StartCol: 5, EndLine: 3, EndCol: 9}
	assert.Equal(t, "3:5-3:9", s.String())
}

func TestSpanFromTo(t *testing.T) {
	a := pointSpan(1, 1)
	b := pointSpan(2, 4)
	got := spanFromTo(a, b)
	assert.Equal(t, Span{StartLine: 1, StartCol: 1, EndLine: 2, EndCol: 4}, got)
}

func TestPointSpan(t *testing.T) {
	p := pointSpan(7, 2)
	assert.Equal(t, 7, p.StartLine)
	assert.Equal(t, 2, p.StartCol)
	assert.Equal(t, p.StartLine, p.EndLine)
	assert.Equal(t, p.StartCol, p.EndCol)
}
