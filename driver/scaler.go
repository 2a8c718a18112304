package driver

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Scaler standardises feature vectors with per-feature means and standard
// deviations. An uninitialised scaler passes features through unchanged.
type Scaler struct {
	means []float64
	stds  []float64
}

func NewScaler(means, stds []float64) (*Scaler, error) {
	if len(means) != len(stds) {
		return nil, errors.Errorf("means and stds differ in length: %d != %d", len(means), len(stds))
	}
	for i, s := range stds {
		if s == 0 {
			return nil, errors.Errorf("zero standard deviation for feature %d", i)
		}
	}
	return &Scaler{means: means, stds: stds}, nil
}

// LoadScaler reads {"means": [...], "stds": [...]}.
func LoadScaler(r io.Reader) (*Scaler, error) {
	params := struct {
		Means []float64 `json:"means"`
		Stds  []float64 `json:"stds"`
	}{}
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return nil, errors.Wrap(err, "unable to decode scaler parameters")
	}
	return NewScaler(params.Means, params.Stds)
}

// Transform returns (x - mean) / std per feature. Features are returned as is
// when the scaler is not initialised or the dimension does not match.
func (s *Scaler) Transform(features []float64) []float64 {
	if s == nil || len(s.means) == 0 {
		log.Warn("cannot scale features: scaler not initialised")
		return features
	}
	if len(features) != len(s.means) {
		log.WithField("features", len(features)).
			WithField("expected", len(s.means)).
			Debug("feature dimension mismatch, not scaling")
		return features
	}
	scaled := make([]float64, len(features))
	for i, f := range features {
		scaled[i] = (f - s.means[i]) / s.stds[i]
	}
	return scaled
}
