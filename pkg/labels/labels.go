// Package labels enumerates the labels of a segmentation volume, builds
// per-label mask volumes and names the resulting meshes.
package labels

import (
	"fmt"
	"slices"
	"strconv"
)

// Background is the label reserved for non-tissue voxels. It is never meshed.
const Background = 0.0

// Unique returns the distinct values in data in ascending order.
// Background is included when present.
func Unique(data []float64) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range data {
		seen[v] = struct{}{}
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

// Foreground returns the distinct non-background values in data in
// ascending order.
func Foreground(data []float64) []float64 {
	values := Unique(data)
	out := values[:0]
	for _, v := range values {
		if v != Background {
			out = append(out, v)
		}
	}
	return out
}

// Mask returns a copy of data where voxels equal to label keep the label
// value and every other voxel is zero. The label value is kept (not 1)
// because extraction selects voxels by exact equality with the label.
func Mask(data []float64, label float64) []float64 {
	mask := make([]float64, len(data))
	for i, v := range data {
		if v == label {
			mask[i] = label
		}
	}
	return mask
}

// Count returns the number of voxels equal to label.
func Count(data []float64, label float64) int {
	n := 0
	for _, v := range data {
		if v == label {
			n++
		}
	}
	return n
}

// Format renders a label value the way it appears in file names:
// integral values without a fractional part.
func Format(label float64) string {
	return strconv.FormatFloat(label, 'f', -1, 64)
}

// Namer maps label values to output file stems.
type Namer struct {
	tags map[int]string
}

// NewNamer creates a namer from a label-to-tag mapping. A nil or empty
// mapping names every label by its numeric value.
func NewNamer(tags map[int]string) *Namer {
	return &Namer{tags: tags}
}

// Name returns the configured tag for an integral label, or the numeric
// label when no tag is configured.
func (n *Namer) Name(label float64) string {
	if n != nil && label == float64(int(label)) {
		if tag, ok := n.tags[int(label)]; ok && tag != "" {
			return tag
		}
	}
	return Format(label)
}

// Stems names every label in values and fails when two labels would share
// a file name, e.g. a tag "2" configured for label 1 while label 2 is
// present too.
func (n *Namer) Stems(values []float64) ([]string, error) {
	stems := make([]string, len(values))
	owner := make(map[string]float64, len(values))
	for i, v := range values {
		stem := n.Name(v)
		if other, ok := owner[stem]; ok {
			return nil, fmt.Errorf("labels %s and %s would both be written as %q",
				Format(other), Format(v), stem)
		}
		owner[stem] = v
		stems[i] = stem
	}
	return stems, nil
}
