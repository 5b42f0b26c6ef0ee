package tiling

import "github.com/hupe1980/tilestore/schema"

// SubarrayVolume returns the cell count of a subarray given as [lo, hi]
// pairs per dimension. Ranges are assumed validated (lo <= hi).
func SubarrayVolume(subarray []int64) uint64 {
	vol := uint64(1)
	for i := 0; i < len(subarray); i += 2 {
		vol *= uint64(subarray[i+1] - subarray[i] + 1)
	}
	return vol
}

// SubarrayContains reports whether coords lies inside the subarray.
func SubarrayContains(subarray []int64, coords []int64) bool {
	for i := range coords {
		if coords[i] < subarray[2*i] || coords[i] > subarray[2*i+1] {
			return false
		}
	}
	return true
}

// SubarrayIntersect returns the intersection of two subarrays and whether
// it is non-empty.
func SubarrayIntersect(a, b []int64) ([]int64, bool) {
	out := make([]int64, len(a))
	for i := 0; i < len(a); i += 2 {
		lo, hi := a[i], a[i+1]
		if b[i] > lo {
			lo = b[i]
		}
		if b[i+1] < hi {
			hi = b[i+1]
		}
		if lo > hi {
			return nil, false
		}
		out[i], out[i+1] = lo, hi
	}
	return out, true
}

// ForEachCoord visits every coordinate tuple of the subarray in the given
// order, reusing one coords slice across calls. The callback must not
// retain the slice; return false to stop early.
func ForEachCoord(subarray []int64, order schema.Order, fn func(coords []int64) bool) {
	n := len(subarray) / 2
	coords := make([]int64, n)
	for i := 0; i < n; i++ {
		coords[i] = subarray[2*i]
	}
	for {
		if !fn(coords) {
			return
		}
		var i int
		if order == schema.ColMajor {
			for i = 0; i < n; i++ {
				coords[i]++
				if coords[i] <= subarray[2*i+1] {
					break
				}
				coords[i] = subarray[2*i]
			}
			if i == n {
				return
			}
		} else {
			for i = n - 1; i >= 0; i-- {
				coords[i]++
				if coords[i] <= subarray[2*i+1] {
					break
				}
				coords[i] = subarray[2*i]
			}
			if i < 0 {
				return
			}
		}
	}
}
