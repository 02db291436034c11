package labels

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnique(t *testing.T) {
	data := []float64{3, 0, 1, 3, 0, 7, 1}
	if diff := cmp.Diff([]float64{0, 1, 3, 7}, Unique(data)); diff != "" {
		t.Errorf("Unique mismatch (-want +got):\n%s", diff)
	}
}

func TestUniqueIndependentOfOrder(t *testing.T) {
	data := make([]float64, 1000)
	for i := range data {
		data[i] = float64(i % 9)
	}
	want := Unique(data)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]float64(nil), data...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if diff := cmp.Diff(want, Unique(shuffled)); diff != "" {
			t.Fatalf("trial %d: label set changed with traversal order (-want +got):\n%s", trial, diff)
		}
	}
}

func TestForeground(t *testing.T) {
	assert.Equal(t, []float64{2, 5}, Foreground([]float64{0, 5, 2, 0}))
	assert.Empty(t, Foreground([]float64{0, 0, 0}))
	assert.Empty(t, Foreground(nil))
}

func TestMaskKeepsLabelValue(t *testing.T) {
	data := []float64{0, 4, 2, 4, 1}
	assert.Equal(t, []float64{0, 4, 0, 4, 0}, Mask(data, 4))
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, Mask(data, 9))
	// input untouched
	assert.Equal(t, []float64{0, 4, 2, 4, 1}, data)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 2, Count([]float64{0, 4, 2, 4}, 4))
	assert.Equal(t, 0, Count([]float64{0, 4, 2, 4}, 3))
}

func TestNamer(t *testing.T) {
	tests := []struct {
		name  string
		tags  map[int]string
		label float64
		want  string
	}{
		{"numeric default", nil, 5, "5"},
		{"tagged", map[int]string{1: "Pelvis", 2: "Femur"}, 2, "Femur"},
		{"untagged falls back", map[int]string{1: "Pelvis"}, 3, "3"},
		{"empty tag falls back", map[int]string{3: ""}, 3, "3"},
		{"fractional label", map[int]string{2: "Femur"}, 2.5, "2.5"},
		{"large label", nil, 1024, "1024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewNamer(tt.tags).Name(tt.label))
		})
	}

	var n *Namer
	assert.Equal(t, "7", n.Name(7))
}

func TestNamerStems(t *testing.T) {
	stems, err := NewNamer(map[int]string{2: "Femur"}).Stems([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "Femur", "3"}, stems)

	_, err = NewNamer(map[int]string{1: "2"}).Stems([]float64{1, 2})
	assert.ErrorContains(t, err, `"2"`)

	_, err = NewNamer(map[int]string{1: "2"}).Stems([]float64{1, 3})
	assert.NoError(t, err, "tag only collides when label 2 is present")
}
