package mask

// dilateSpatial grows a boolean field by one cell per iteration in every
// non-spectral dimension, using full spatial neighbor connectivity. The
// structuring element never extends along the spectral axis, so emission is
// only recovered around a detection within its own spectral channel. A 1-D
// field has no spatial axes and is returned unchanged.
func dilateSpatial(bits []bool, shape []int, spectralAxis, iters int) []bool {
	offsets := neighborOffsets(len(shape), spectralAxis)
	if len(offsets) == 0 {
		return bits
	}
	for i := 0; i < iters; i++ {
		bits = dilate(bits, shape, offsets)
	}
	return bits
}

// dilate performs one dilation pass with the given structuring offsets,
// returning a fresh field.
func dilate(bits []bool, shape []int, offsets [][]int) []bool {
	strides := rowMajorStrides(shape)
	out := append([]bool(nil), bits...)

	coords := make([]int, len(shape))
	scratch := make([]int, len(shape))
	for idx, on := range bits {
		if !on {
			continue
		}
		decompose(idx, strides, coords)
		for _, off := range offsets {
			if nidx, ok := shifted(coords, off, shape, strides, scratch); ok {
				out[nidx] = true
			}
		}
	}
	return out
}

// ExpandInto grows seed into limit by bounded fixed-point iteration: each
// pass admits the full-neighbor dilation of the current mask intersected
// with limit, and the loop stops as soon as the true-cell count stops
// changing or maxIters passes have run. The cap guarantees termination on
// pathological inputs; convergence is reported through the returned
// iteration count being below maxIters.
//
// Typical use is recovering faint line wings: seed is a filtered
// high-confidence mask, limit the permissive low mask.
func ExpandInto(seed, limit []bool, shape []int, maxIters int) ([]bool, int) {
	offsets := neighborOffsets(len(shape), -1)
	cur := append([]bool(nil), seed...)

	count := countTrue(cur)
	for iter := 0; iter < maxIters; iter++ {
		grown := dilate(cur, shape, offsets)
		for i := range grown {
			grown[i] = cur[i] || (grown[i] && limit[i])
		}
		next := countTrue(grown)
		cur = grown
		if next == count {
			return cur, iter
		}
		count = next
	}
	return cur, maxIters
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}
