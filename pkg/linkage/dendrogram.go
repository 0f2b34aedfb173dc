package linkage

const (
	// DefaultColorThresholdFraction scales MaxDistance to the default color threshold.
	DefaultColorThresholdFraction = 0.7
	// DefaultLastP caps the number of displayed leaves.
	DefaultLastP = 30
)

// AboveThreshold is the color group of links at or above the color threshold.
const AboveThreshold = -1

// DendrogramOptions controls coloring and truncation.
type DendrogramOptions struct {
	// ColorThreshold, when set, overrides ColorThresholdFraction. A value <= 0 disables
	// coloring.
	ColorThreshold *float64 `yaml:"color_threshold,omitempty" json:"color_threshold,omitempty"`
	// ColorThresholdFraction is multiplied by MaxDistance. Zero means the default 0.7.
	ColorThresholdFraction float64 `yaml:"color_threshold_fraction" json:"color_threshold_fraction"`
	// LastP shows only the last LastP merged clusters as leaves. Zero means min(30, n).
	LastP int `yaml:"last_p" json:"last_p"`
}

// DefaultDendrogramOptions returns fraction 0.7 and LastP 30.
func DefaultDendrogramOptions() DendrogramOptions {
	return DendrogramOptions{ColorThresholdFraction: DefaultColorThresholdFraction, LastP: DefaultLastP}
}

// Leaf is one displayed leaf: an original document when ID < N, otherwise a collapsed
// cluster of Size documents.
type Leaf struct {
	ID   int `json:"id"`
	Size int `json:"size"`
}

// Link is one displayed merge.
type Link struct {
	ID       int     `json:"id"`
	Left     int     `json:"left"`
	Right    int     `json:"right"`
	Distance float64 `json:"distance"`
	Size     int     `json:"size"`
	Color    int     `json:"color"`
}

// Dendrogram is the layout data for drawing a Tree.
type Dendrogram struct {
	Leaves         []Leaf  `json:"leaves"`
	Links          []Link  `json:"links"`
	ColorThreshold float64 `json:"color_threshold"`
	ColorGroups    int     `json:"color_groups"`
	Truncated      bool    `json:"truncated"`
}

// ResolveColorThreshold returns the threshold opts selects for t.
func (t *Tree) ResolveColorThreshold(opts DendrogramOptions) float64 {
	if opts.ColorThreshold != nil {
		return *opts.ColorThreshold
	}
	f := opts.ColorThresholdFraction
	if f == 0 {
		f = DefaultColorThresholdFraction
	}
	return f * t.MaxDistance()
}

// Dendrogram lays out t. Leaves are listed left to right; a link below the color
// threshold shares the color group of the highest below-threshold link above it, and each
// such subtree gets a new group in left-to-right order.
func (t *Tree) Dendrogram(opts DendrogramOptions) *Dendrogram {
	threshold := t.ResolveColorThreshold(opts)

	p := opts.LastP
	if p <= 0 {
		p = DefaultLastP
	}
	if p > t.N {
		p = t.N
	}
	// clusters created by the last p-1 merges are drawn; anything older is a leaf
	firstDrawn := t.N + (t.N - p)

	sizes := make([]int, t.N+len(t.Steps))
	for i := 0; i < t.N; i++ {
		sizes[i] = 1
	}
	for s, step := range t.Steps {
		sizes[t.N+s] = step.Size
	}

	dg := &Dendrogram{
		ColorThreshold: threshold,
		Truncated:      p < t.N,
	}
	if len(t.Steps) == 0 {
		return dg
	}

	root := t.N + len(t.Steps) - 1
	var walk func(c, color int)
	walk = func(c, color int) {
		if c < firstDrawn {
			dg.Leaves = append(dg.Leaves, Leaf{ID: c, Size: sizes[c]})
			return
		}
		step := t.Steps[c-t.N]
		if color == AboveThreshold && threshold > 0 && step.Distance < threshold {
			color = dg.ColorGroups
			dg.ColorGroups++
		}
		left, right := t.children(c)
		dg.Links = append(dg.Links, Link{
			ID:       c,
			Left:     left,
			Right:    right,
			Distance: step.Distance,
			Size:     step.Size,
			Color:    color,
		})
		walk(left, color)
		walk(right, color)
	}
	walk(root, AboveThreshold)

	return dg
}
