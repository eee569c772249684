package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallReleaseFunc(t *testing.T) {
	var order []int
	RegisterReleaseFunc(func() { order = append(order, 1) })
	RegisterReleaseFunc(func() { order = append(order, 2) })
	RegisterReleaseFunc(func() { order = append(order, 3) })

	CallReleaseFunc()
	assert.Equal(t, []int{3, 2, 1}, order)

	CallReleaseFunc()
	assert.Equal(t, []int{3, 2, 1}, order)
}
