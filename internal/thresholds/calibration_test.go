package thresholds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singura/singura-go/internal/models"
)

func TestLoadCalibration_MissingFile(t *testing.T) {
	t.Parallel()

	p, err := LoadCalibration(filepath.Join(t.TempDir(), "calibration.json"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadCalibration_ParsesPartial(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calibration.json")
	content := `{
		"velocity": {"rates": {"file_create": 2.5}},
		"timing": {"suspiciousCV": 0.12},
		"offHours": {"minEvents": 15}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := LoadCalibration(path)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 2.5, p.Velocity.Rates[models.EventFileCreate])
	require.NotNil(t, p.Timing.SuspiciousCV)
	assert.Equal(t, 0.12, *p.Timing.SuspiciousCV)
	require.NotNil(t, p.OffHours.MinEvents)
	assert.Equal(t, 15, *p.OffHours.MinEvents)
	assert.Nil(t, p.DataVolume)
}

func TestLoadCalibration_InvalidJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte("{invalid"), 0644))

	_, err := LoadCalibration(path)
	require.Error(t, err)
}

func TestCalibratedDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calibration.json")
	content := `{"timing": {"suspiciousCV": 0.2, "criticalCV": 0.08}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	set := CalibratedDefaults(path)

	assert.Equal(t, 0.2, set.Timing.SuspiciousCV)
	assert.Equal(t, 0.08, set.Timing.CriticalCV)
	assert.Equal(t, SourceDefault, set.Source)
}

func TestCalibratedDefaults_MissingFile(t *testing.T) {
	t.Parallel()

	set := CalibratedDefaults(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, 0.15, set.Timing.SuspiciousCV)
}

func TestCalibratedDefaults_InvalidValuesIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calibration.json")
	// criticalCV above suspiciousCV is rejected as a whole
	content := `{"timing": {"criticalCV": 0.9}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	set := CalibratedDefaults(path)

	assert.Equal(t, 0.05, set.Timing.CriticalCV)
	assert.Equal(t, 0.15, set.Timing.SuspiciousCV)
}
