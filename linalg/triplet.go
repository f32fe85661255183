package linalg

import "unsafe"

// Triplet is one (row, col, value) coefficient. Duplicated coordinates are
// summed when the list is compressed.
type Triplet struct {
	Row   int
	Col   int
	Value float64
}

// TripletBytes is the in-memory size of one Triplet.
const TripletBytes = int(unsafe.Sizeof(Triplet{}))

type Triplets []Triplet

func NewTriplets(capacity int) Triplets {
	return make(Triplets, 0, capacity)
}

func (t *Triplets) Add(row, col int, v float64) {
	*t = append(*t, Triplet{Row: row, Col: col, Value: v})
}

func (t Triplets) MemoryBytes() int {
	return cap(t) * TripletBytes
}
