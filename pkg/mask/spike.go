package mask

import "cubemask/pkg/cube"

// suppressSpikes removes spectral spikes from a mask: a cell survives only
// if it belongs to a run of at least window consecutive true cells along the
// spectral axis. A single anomalous channel passing threshold on its own is
// an instrumental artifact, not a line profile, and is removed here; real
// lines span several adjacent channels and pass untouched.
//
// Runs are measured within the band only. The spectral boundary truncates
// them: the last channel is never treated as adjacent to the first, since
// circular wrap-around has no physical meaning for a spectral axis, and no
// support is fabricated beyond the band edges.
func suppressSpikes(bits []bool, c *cube.Cube, window int) []bool {
	out := make([]bool, len(bits))
	n := c.SpectralLen()
	step := c.Stride(c.SpectralAxis)

	for p := 0; p < c.NumProfiles(); p++ {
		start := c.ProfileStart(p)
		k := 0
		for k < n {
			if !bits[start+k*step] {
				k++
				continue
			}
			runStart := k
			for k < n && bits[start+k*step] {
				k++
			}
			if k-runStart < window {
				continue
			}
			for j := runStart; j < k; j++ {
				out[start+j*step] = true
			}
		}
	}
	return out
}
