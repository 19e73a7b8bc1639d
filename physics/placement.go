package physics

import (
	"math"
	"strings"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Placement selects where unplaced nodes start.
type Placement string

const (
	// PlacementNoise scatters nodes over the canvas using seeded simplex noise.
	PlacementNoise Placement = "noise"
	// PlacementRing arranges nodes on a circle in first-seen order.
	PlacementRing Placement = "ring"
)

// ParsePlacement converts a config string into a Placement.
func ParsePlacement(s string) (Placement, error) {
	switch p := Placement(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlacementNoise, nil
	case PlacementNoise, PlacementRing:
		return p, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown placement %q", s)
	}
}

// noiseStep spreads consecutive node indices far enough apart in noise
// space that their samples are uncorrelated.
const noiseStep = 7.31

func place(p Placement, noise opensimplex.Noise, graph *models.Graph) {
	switch p {
	case PlacementRing:
		placeRing(graph)
	default:
		placeNoise(noise, graph)
	}
}

func placeNoise(noise opensimplex.Noise, graph *models.Graph) {
	for _, n := range graph.Order {
		if n.Placed() {
			continue
		}
		i := float64(n.Index) * noiseStep
		fx := unit(noise.Eval2(i, 0.5))
		fy := unit(noise.Eval2(0.5, i+1000))
		n.SetPosition(fx*graph.Width, fy*graph.Height)
	}
}

func placeRing(graph *models.Graph) {
	count := float64(len(graph.Order))
	if count == 0 {
		return
	}
	cx := graph.Width / 2
	cy := graph.Height / 2
	radius := math.Min(graph.Width, graph.Height) * 0.4

	for _, n := range graph.Order {
		if n.Placed() {
			continue
		}
		angle := 2*math.Pi*float64(n.Index)/count - math.Pi/2
		n.SetPosition(cx+radius*math.Cos(angle), cy+radius*math.Sin(angle))
	}
}

// unit maps a noise sample in [-1, 1] onto [0, 1].
func unit(v float64) float64 {
	return math.Max(0, math.Min(1, 0.5+0.5*v))
}
