package thresholds

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/singura/singura-go/internal/errors"
)

// LoadCalibration reads the optional calibration file into a Partial. A
// missing file is not an error; it means compiled-in defaults apply.
func LoadCalibration(path string) (*Partial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("No calibration file, using compiled-in defaults")
			return nil, nil
		}
		return nil, internalerrors.WrapInvalidInput("thresholds.LoadCalibration", err)
	}

	var p Partial
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, internalerrors.WrapInvalidInput("thresholds.LoadCalibration", err)
	}

	log.Info().Str("path", path).Msg("Loaded threshold calibration file")
	return &p, nil
}

// CalibratedDefaults builds the default threshold set with the calibration
// file applied. The result is validated; an invalid calibration falls back to
// pure defaults so a bad edit can never disable detection.
func CalibratedDefaults(path string) *ThresholdSet {
	defaults := Defaults()

	p, err := LoadCalibration(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable calibration file")
		return defaults
	}
	if p.IsZero() {
		return defaults
	}

	merged := Merge(defaults, p)
	if err := merged.Validate(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring invalid calibration file")
		return defaults
	}

	merged.Source = SourceDefault
	return merged
}
