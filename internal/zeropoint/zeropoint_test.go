package zeropoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobal(t *testing.T) {
	g := Global{Value: DefaultOffset}

	off, ok := g.Offset(Inputs{GMag: 15, Solved: Solved5p})
	assert.True(t, ok)
	assert.Equal(t, -0.017, off)

	_, ok = g.Offset(Inputs{GMag: 15, Solved: Solved6p})
	assert.True(t, ok)

	_, ok = g.Offset(Inputs{GMag: 15, Solved: 3})
	assert.False(t, ok)
}

func TestFunc(t *testing.T) {
	var m Model = Func(func(in Inputs) (float64, bool) {
		return in.GMag / 1000, true
	})
	off, ok := m.Offset(Inputs{GMag: 12})
	assert.True(t, ok)
	assert.InDelta(t, 0.012, off, 1e-12)
}
