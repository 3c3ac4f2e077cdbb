package models

import "fmt"

// Tree is a recombining binary tree over float64 values. The node reached
// at time step t after k up moves is stored at index t*(t+1)/2 + k, so a
// tree with T steps occupies (T+1)(T+2)/2 contiguous slots.
type Tree struct {
	Steps int
	data  []float64
}

// NewTree returns a zeroed tree with the given number of time steps.
func NewTree(steps int) *Tree {
	if steps < 0 {
		panic(fmt.Sprintf("models: negative tree steps %d", steps))
	}
	numNodes := (steps + 1) * (steps + 2) / 2
	return &Tree{
		Steps: steps,
		data:  make([]float64, numNodes),
	}
}

func (tr *Tree) index(t, k int) int {
	if t < 0 || t > tr.Steps || k < 0 || k > t {
		panic(fmt.Sprintf("models: tree node (t=%d, k=%d) out of range for %d steps", t, k, tr.Steps))
	}
	return t*(t+1)/2 + k
}

// At returns the value at time step t after k up moves.
func (tr *Tree) At(t, k int) float64 {
	return tr.data[tr.index(t, k)]
}

// Set stores the value at time step t after k up moves.
func (tr *Tree) Set(t, k int, value float64) {
	tr.data[tr.index(t, k)] = value
}

// Layer returns a copy of the t+1 values at time step t, ordered by the
// number of up moves.
func (tr *Tree) Layer(t int) []float64 {
	start := tr.index(t, 0)
	layer := make([]float64, t+1)
	copy(layer, tr.data[start:start+t+1])
	return layer
}

// Leaves returns a copy of the terminal layer.
func (tr *Tree) Leaves() []float64 {
	return tr.Layer(tr.Steps)
}
