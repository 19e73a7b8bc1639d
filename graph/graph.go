// Package graph turns a flat list of links into a built graph whose edges
// share one node object per distinct identifier.
package graph

import (
	"strings"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
)

// Policy decides what the builder does with a suspicious link.
type Policy string

const (
	PolicyKeep   Policy = "keep"   // render as-is
	PolicyDrop   Policy = "drop"   // skip silently
	PolicyReject Policy = "reject" // fail the build
)

// ParsePolicy converts a config string into a Policy. Empty means keep.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyKeep, nil
	case PolicyKeep, PolicyDrop, PolicyReject:
		return p, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown link policy %q", s)
	}
}

// Options configures a build.
type Options struct {
	Name         string
	Width        float64
	Height       float64
	LinkDistance float64
	SelfLoops    Policy
	Duplicates   Policy
}

// DefaultOptions returns the canvas of the original visualization with
// every link kept as supplied.
func DefaultOptions() Options {
	return Options{
		Name:         "links",
		Width:        models.DefaultWidth,
		Height:       models.DefaultHeight,
		LinkDistance: models.DefaultLinkDistance,
		SelfLoops:    PolicyKeep,
		Duplicates:   PolicyKeep,
	}
}

// Build derives the node set from links and rewrites every link into an
// edge that references the shared nodes. The first occurrence of an
// identifier creates its node; later occurrences reuse it.
func Build(links []models.Link, opts Options) (*models.Graph, error) {
	opts = withDefaults(opts)

	g := models.NewGraph(opts.Name)
	g.SetDimensions(opts.Width, opts.Height)
	g.LinkDistance = opts.LinkDistance

	seen := make(map[models.Link]bool, len(links))
	for i, l := range links {
		if l.Source == "" || l.Target == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "link %d has an empty identifier", i)
		}

		if l.Source == l.Target {
			switch opts.SelfLoops {
			case PolicyDrop:
				continue
			case PolicyReject:
				return nil, errors.New(errors.ErrCodeInvalidInput, "link %d is a self-loop on %q", i, l.Source)
			}
		}

		if seen[l] {
			switch opts.Duplicates {
			case PolicyDrop:
				continue
			case PolicyReject:
				return nil, errors.New(errors.ErrCodeInvalidInput, "link %d duplicates %s -> %s", i, l.Source, l.Target)
			}
		}
		seen[l] = true

		e := g.AddEdge(i, l.Source, l.Target)
		e.Source.Weight++
		e.Target.Weight++
	}

	return g, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.LinkDistance <= 0 {
		opts.LinkDistance = def.LinkDistance
	}
	if opts.SelfLoops == "" {
		opts.SelfLoops = PolicyKeep
	}
	if opts.Duplicates == "" {
		opts.Duplicates = PolicyKeep
	}
	return opts
}
