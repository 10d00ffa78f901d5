package navigation

import "github.com/cjeanneret/MazeGo/internal/logic/movelog"

// Heading is one of the four cardinal directions, 0 (north) to 3 (west),
// numbered like the directional move codes.
type Heading int

const (
	HeadingNorth Heading = iota
	HeadingEast
	HeadingSouth
	HeadingWest
)

// Right returns the heading after a clockwise quarter turn.
func (h Heading) Right() Heading {
	if h == HeadingWest {
		return h - 3
	}
	return h + 1
}

// Left returns the heading after a counter-clockwise quarter turn.
func (h Heading) Left() Heading {
	if h == HeadingNorth {
		return h + 3
	}
	return h - 1
}

// Code returns the directional record code for h.
func (h Heading) Code() movelog.Code {
	return movelog.Code(h)
}

func (h Heading) String() string {
	return h.Code().String()
}
