// Package geometry normalizes survey boundary rings and produces
// sequential station labels for their vertices.
package geometry

import (
	"errors"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// ErrInsufficientVertices is returned when a ring has fewer than three
// distinct vertices and cannot form a polygon.
var ErrInsufficientVertices = errors.New("ring has fewer than 3 distinct vertices")

// CloseRing appends a copy of the first position when the ring is not
// already closed. Rings with fewer than three points are returned
// unchanged. The comparison is exact: the closing point is always derived
// from the first, never independently measured, so tolerance would only
// hide bugs. Closing an already-closed ring is a no-op.
func CloseRing(ring domain.Ring) domain.Ring {
	if len(ring) < 3 {
		return ring
	}
	if ring.Closed() {
		return ring
	}
	out := make(domain.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	return append(out, ring[0])
}

// OpenRing removes the closing vertex if present. Opening an open ring is
// a no-op.
func OpenRing(ring domain.Ring) domain.Ring {
	if !ring.Closed() {
		return ring
	}
	return ring[:len(ring)-1]
}

// Validate checks that the ring has at least three distinct vertices.
// The closing vertex, if present, does not count as distinct.
func Validate(ring domain.Ring) error {
	if countDistinct(ring) < 3 {
		return ErrInsufficientVertices
	}
	return nil
}

func countDistinct(ring domain.Ring) int {
	n := 0
	for i, p := range ring {
		dup := false
		for j := 0; j < i; j++ {
			if p.CoordsEqual(ring[j]) {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

// StationLabel converts a zero-based vertex index into its survey station
// label using spreadsheet column naming: 0→"A", 25→"Z", 26→"AA". Indices
// are unbounded.
func StationLabel(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	n := index
	for {
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(buf)
}
