// Package field provides the playing-field geometry and the color-symmetric
// coordinate transforms.
//
// The table is described in a canonical frame that does not depend on the
// team color: the starting corner is at (0, 0), the X axis runs along the
// long side of the table, and Y spans the mirrored axis. When playing on the
// mirrored side the Y axis of the real table points the other way, so every
// canonical Y coordinate and every canonical angle must be passed through
// MirrorY / MirrorAngle before being handed to the motion subsystem.
//
// All transforms are pure functions of (value, color). Applying MirrorY twice
// with the same color returns the original value.
package field

import "fmt"

// Table dimensions in millimeters. Y is the mirrored axis.
const (
	TableLength = 3000
	TableWidth  = 2000
)

// MatchDuration is the length of a match in seconds. Crossing it is the
// only abort condition of the strategy loop.
const MatchDuration = 89

// Starting pose of the robot against the border, in the canonical frame.
// The thickness is the distance between the back of the robot and the
// wheel axis, used by border auto-positioning.
const (
	StartX         = 88.5
	StartY         = TableWidth - 213
	StartAngleDeg  = 90
	RobotThickness = 120
)

// servoCorrection is the magnitude of the color-dependent servo offset.
const servoCorrection = 20

// Color identifies the side the robot plays on. ColorRed is the reference
// side for which every transform is the identity.
type Color int

const (
	ColorRed Color = iota
	ColorBlue
)

// ParseColor converts a configuration string into a Color.
func ParseColor(s string) (Color, error) {
	switch s {
	case "red":
		return ColorRed, nil
	case "blue":
		return ColorBlue, nil
	default:
		return ColorRed, fmt.Errorf("unknown color %q (want red or blue)", s)
	}
}

func (c Color) String() string {
	if c == ColorBlue {
		return "blue"
	}
	return "red"
}

// Point is a position on the table in millimeters, canonical frame unless
// stated otherwise.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is a position plus a heading in degrees.
type Pose struct {
	Point
	AngleDeg float64 `json:"angle_deg"`
}

// MirrorY maps a canonical Y coordinate to the playing-side Y coordinate.
func MirrorY(c Color, y float64) float64 {
	if c == ColorBlue {
		return TableWidth - y
	}
	return y
}

// MirrorAngle maps a canonical angle (degrees) to the playing-side angle.
func MirrorAngle(c Color, a float64) float64 {
	if c == ColorBlue {
		return -a
	}
	return a
}

// MirrorPoint maps a canonical point to the playing side. X is invariant.
func MirrorPoint(c Color, p Point) Point {
	return Point{X: p.X, Y: MirrorY(c, p.Y)}
}

// MirrorPose maps a canonical pose to the playing side.
func MirrorPose(c Color, p Pose) Pose {
	return Pose{Point: MirrorPoint(c, p.Point), AngleDeg: MirrorAngle(c, p.AngleDeg)}
}

// ServoCorrection returns the fixed corrective offset applied to the glass
// servo. It depends only on the color, not on any input coordinate.
func ServoCorrection(c Color) float64 {
	if c == ColorBlue {
		return servoCorrection
	}
	return -servoCorrection
}

// StartPose returns the border-referenced starting pose for the given
// color, already mirrored for the playing side.
func StartPose(c Color) Pose {
	return MirrorPose(c, Pose{Point: Point{X: StartX, Y: StartY}, AngleDeg: StartAngleDeg})
}
