package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftitostl/pkg/smoothing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "*.nii.gz", cfg.Input.Pattern)
	assert.Equal(t, "LPS", cfg.Input.Coordinates)
	assert.Equal(t, 30, cfg.Smoothing.Iterations)
	assert.Equal(t, "ascii", cfg.Output.Format)
	assert.Empty(t, cfg.Labels)

	if diff := cmp.Diff(smoothing.DefaultOptions(), cfg.SmoothingOptions()); diff != "" {
		t.Errorf("smoothing options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
smoothing:
  iterations: 15
output:
  format: binary
labels:
  1: Pelvis
  2: Femur
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Smoothing.Iterations)
	assert.Equal(t, 0.1, cfg.Smoothing.PassBand, "unset keys keep defaults")
	assert.True(t, cfg.Smoothing.NormalizeCoordinates)
	assert.Equal(t, "binary", cfg.Output.Format)
	assert.Equal(t, map[int]string{1: "Pelvis", 2: "Femur"}, cfg.Labels)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Labels = map[int]string{3: "Tibia"}
	cfg.Output.SaveMasks = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niftitostl.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "iterations: 30")
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":          "smoothing: [",
		"zero iterations": "smoothing:\n  iterations: 0\n",
		"pass band":       "smoothing:\n  passBand: 2.5\n",
		"format":          "output:\n  format: obj\n",
		"frame":           "input:\n  coordinates: XYZ\n",
		"pattern":         "input:\n  pattern: \"[\"\n",
		"background name": "labels:\n  0: bkg\n",
		"empty name":      "labels:\n  4: \" \"\n",
		"path in name":    "labels:\n  4: ../evil\n",
		"duplicate names": "labels:\n  4: Bone\n  5: Bone\n",
		"numeric name":    "labels:\n  1: \"2\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestNumericNameOfSameLabel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Labels = map[int]string{3: "3"}
	assert.NoError(t, cfg.Validate())
}
