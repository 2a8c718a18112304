// Package trip holds the finished-trip value shared by the scorer, the
// classifier and the aggregator.
package trip

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Summary is the immutable result of one trip. EfficiencyScore is nil until
// the trip has been scored.
type Summary struct {
	ID                     string        `json:"id"`
	StartedAt              time.Time     `json:"started_at"`
	AverageSpeedKmh        float64       `json:"average_speed_kmh"`
	DistanceKm             float64       `json:"distance_km"`
	Duration               time.Duration `json:"duration_ns"`
	FuelUsedL              float64       `json:"fuel_used_l"`
	AverageFuelConsumption float64       `json:"average_fuel_consumption_l100km"`
	AverageRPM             float64       `json:"average_rpm"`
	MaxRPM                 int           `json:"max_rpm"`
	EfficiencyScore        *int          `json:"efficiency_score,omitempty"`
}

func NewID() string {
	return uuid.New().String()
}

// WithScore returns a copy of s carrying score.
func (s Summary) WithScore(score int) Summary {
	s.EfficiencyScore = &score
	return s
}

// Score returns the efficiency score, or 0 for an unscored trip.
func (s Summary) Score() int {
	if s.EfficiencyScore == nil {
		return 0
	}
	return *s.EfficiencyScore
}

// ReadAll reads trips stored one JSON document per line.
func ReadAll(r io.Reader) ([]Summary, error) {
	var trips []Summary
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s Summary
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, errors.Wrapf(err, "unable to decode trip on line %d", line)
		}
		trips = append(trips, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read trips")
	}
	return trips, nil
}

func Write(w io.Writer, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "unable to encode trip")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func LoadFile(fileName string) ([]Summary, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return ReadAll(file)
}

// AppendFile appends s to the trips file, creating it when missing.
func AppendFile(fileName string, s Summary) error {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "unable to open file %s", fileName)
	}
	if err := Write(file, s); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
