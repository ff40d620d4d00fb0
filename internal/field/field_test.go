package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    Color
		wantErr bool
	}{
		{input: "red", want: ColorRed},
		{input: "blue", want: ColorBlue},
		{input: "green", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMirrorIdentityForRed(t *testing.T) {
	for _, y := range []float64{0, 300, 1000, 1700, TableWidth} {
		assert.Equal(t, y, MirrorY(ColorRed, y))
	}
	for _, a := range []float64{-180, -45, 0, 45, 90, 180} {
		assert.Equal(t, a, MirrorAngle(ColorRed, a))
	}
}

func TestMirrorInvolutionForBlue(t *testing.T) {
	for _, y := range []float64{0, 88.5, 300, 1000, 1700, TableWidth} {
		assert.Equal(t, y, MirrorY(ColorBlue, MirrorY(ColorBlue, y)))
	}
	for _, a := range []float64{-180, -45, 0, 45, 90, 180} {
		assert.Equal(t, a, MirrorAngle(ColorBlue, MirrorAngle(ColorBlue, a)))
	}
}

func TestMirrorPose(t *testing.T) {
	raw := Pose{Point: Point{X: 500, Y: 300}, AngleDeg: 45}

	red := MirrorPose(ColorRed, raw)
	assert.Equal(t, Pose{Point: Point{X: 500, Y: 300}, AngleDeg: 45}, red)

	blue := MirrorPose(ColorBlue, raw)
	assert.Equal(t, Pose{Point: Point{X: 500, Y: 1700}, AngleDeg: -45}, blue)
}

func TestServoCorrection(t *testing.T) {
	assert.Equal(t, float64(-20), ServoCorrection(ColorRed))
	assert.Equal(t, float64(20), ServoCorrection(ColorBlue))
}

func TestStartPose(t *testing.T) {
	red := StartPose(ColorRed)
	assert.Equal(t, 88.5, red.X)
	assert.Equal(t, float64(TableWidth-213), red.Y)
	assert.Equal(t, float64(90), red.AngleDeg)

	blue := StartPose(ColorBlue)
	assert.Equal(t, 88.5, blue.X)
	assert.Equal(t, float64(213), blue.Y)
	assert.Equal(t, float64(-90), blue.AngleDeg)
}
