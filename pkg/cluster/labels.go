package cluster

// Noise is the label of points a density-based algorithm leaves unassigned.
const Noise = -1

// Labels assigns every document a cluster id, or Noise.
type Labels []int

// Canonicalize renumbers non-noise labels 0..k-1 in order of first appearance. Any
// negative label becomes Noise.
func Canonicalize(raw []int) Labels {
	out := make(Labels, len(raw))
	ids := make(map[int]int)
	for i, l := range raw {
		if l < 0 {
			out[i] = Noise
			continue
		}
		c, ok := ids[l]
		if !ok {
			c = len(ids)
			ids[l] = c
		}
		out[i] = c
	}
	return out
}

// EffectiveCount returns the number of distinct non-noise labels.
func (l Labels) EffectiveCount() int {
	seen := make(map[int]struct{})
	for _, v := range l {
		if v != Noise {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// NoiseCount returns how many documents are labeled Noise.
func (l Labels) NoiseCount() int {
	n := 0
	for _, v := range l {
		if v == Noise {
			n++
		}
	}
	return n
}

// Sizes returns the number of members per non-noise label.
func (l Labels) Sizes() map[int]int {
	sizes := make(map[int]int)
	for _, v := range l {
		if v != Noise {
			sizes[v]++
		}
	}
	return sizes
}

// Members returns the document indices of each non-noise label, in label order.
func (l Labels) Members() [][]int {
	k := 0
	for _, v := range l {
		if v+1 > k {
			k = v + 1
		}
	}
	out := make([][]int, k)
	for i, v := range l {
		if v != Noise {
			out[v] = append(out[v], i)
		}
	}
	return out
}
