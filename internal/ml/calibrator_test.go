package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsotonicCalibrator(t *testing.T) {
	c, err := NewIsotonicCalibrator([]float64{0, 1, 2}, []float64{0.05, 0.2, 0.6})
	require.NoError(t, err)

	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{name: "below range clamps", score: -3, want: 0.05},
		{name: "first threshold", score: 0, want: 0.05},
		{name: "interpolates", score: 0.5, want: 0.125},
		{name: "exact threshold", score: 1, want: 0.2},
		{name: "upper segment", score: 1.5, want: 0.4},
		{name: "above range clamps", score: 10, want: 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Calibrate(tt.score)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err = c.Calibrate(math.NaN())
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestNewIsotonicCalibrator_Invalid(t *testing.T) {
	_, err := NewIsotonicCalibrator(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewIsotonicCalibrator([]float64{0, 1}, []float64{0.1})
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewIsotonicCalibrator([]float64{1, 0}, []float64{0.1, 0.2})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestPlattCalibrator(t *testing.T) {
	c, err := NewPlattCalibrator(2, -1)
	require.NoError(t, err)

	got, err := c.Calibrate(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	got, err = c.Calibrate(3)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-5)), got, 1e-12)

	_, err = c.Calibrate(math.Inf(1))
	assert.ErrorIs(t, err, ErrCalibration)

	_, err = NewPlattCalibrator(math.NaN(), 0)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestParseCalibrator(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantMethod string
		wantErr    bool
	}{
		{
			name:       "isotonic",
			data:       `{"method":"isotonic","version":"v2","params":{"x_thresholds":[0,1],"y_thresholds":[0.1,0.9]}}`,
			wantMethod: "isotonic",
		},
		{
			name:       "platt",
			data:       `{"method":"platt","params":{"a":1.2,"b":-0.3}}`,
			wantMethod: "platt",
		},
		{name: "unknown method", data: `{"method":"beta","params":{}}`, wantErr: true},
		{name: "bad params", data: `{"method":"isotonic","params":{"x_thresholds":"nope"}}`, wantErr: true},
		{name: "not json", data: `calibrator`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCalibrator([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArtifact)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, c.Method())
		})
	}
}
