package mask

// labelConnected assigns consecutive positive integer labels to the
// connected regions of a boolean field under full-neighbor connectivity
// (8-connected in 2-D, 26-connected in 3-D; contiguous runs in 1-D).
// Label 0 means "not in mask". Returns the label field and the region count.
func labelConnected(bits []bool, shape []int) ([]int, int) {
	strides := rowMajorStrides(shape)
	offsets := neighborOffsets(len(shape), -1)

	labels := make([]int, len(bits))
	var queue []int
	next := 0

	coords := make([]int, len(shape))
	ncoords := make([]int, len(shape))

	for start, on := range bits {
		if !on || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)

		// Flood fill over the region.
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			decompose(idx, strides, coords)
			for _, off := range offsets {
				nidx, ok := shifted(coords, off, shape, strides, ncoords)
				if !ok || !bits[nidx] || labels[nidx] != 0 {
					continue
				}
				labels[nidx] = next
				queue = append(queue, nidx)
			}
		}
	}
	return labels, next
}

// rowMajorStrides returns the flat-index step per axis for a row-major
// field of the given shape.
func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// neighborOffsets enumerates every non-zero coordinate delta in
// {-1,0,1}^ndim. When skipAxis is a valid axis index, that axis is held at
// zero, yielding the purely spatial neighborhood used by dilation.
func neighborOffsets(ndim, skipAxis int) [][]int {
	var out [][]int
	off := make([]int, ndim)

	var walk func(axis int)
	walk = func(axis int) {
		if axis == ndim {
			for _, v := range off {
				if v != 0 {
					out = append(out, append([]int(nil), off...))
					return
				}
			}
			return
		}
		if axis == skipAxis {
			off[axis] = 0
			walk(axis + 1)
			return
		}
		for d := -1; d <= 1; d++ {
			off[axis] = d
			walk(axis + 1)
		}
	}
	walk(0)
	return out
}

// decompose converts a flat index into per-axis coordinates.
func decompose(idx int, strides, coords []int) {
	for i, s := range strides {
		coords[i] = idx / s
		idx %= s
	}
}

// shifted applies a coordinate delta, reporting whether the result stays in
// bounds, and returns its flat index. scratch receives the shifted
// coordinates and must have the same length as coords.
func shifted(coords, delta, shape, strides, scratch []int) (int, bool) {
	idx := 0
	for i := range coords {
		v := coords[i] + delta[i]
		if v < 0 || v >= shape[i] {
			return 0, false
		}
		scratch[i] = v
		idx += v * strides[i]
	}
	return idx, true
}
