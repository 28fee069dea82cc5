// Package similarity scores how alike two users' catalogues are.
//
// The score blends how much the catalogues overlap (Jaccard over titles)
// with how well the users agree on the titles both rated, measured on
// mean-centered ratings so that a user who rates everything a point higher
// still agrees with one who does not.
package similarity

import (
	"math"

	"github.com/aluiziolira/backlog-match/models"
)

// Mode selects how overlap and agreement are blended.
type Mode string

const (
	// ModeBonus adds overlap×100 and cosine×100, then clamps.
	ModeBonus Mode = "bonus"
	// ModeSplit gives overlap and rating agreement up to 50 each.
	ModeSplit Mode = "split"
)

const (
	maxScore = 100
	// maxCenteredGap bounds |centeredA - centeredB| on a 0.5–5 scale.
	maxCenteredGap = 4.5
)

// Option configures a comparison.
type Option func(*options)

type options struct {
	mode Mode
}

// WithMode selects the blending mode; unknown modes fall back to ModeBonus.
func WithMode(mode Mode) Option {
	return func(o *options) {
		if mode == ModeBonus || mode == ModeSplit {
			o.mode = mode
		}
	}
}

// Result is the breakdown of one comparison.
type Result struct {
	Mode      Mode
	Shared    int     // titles of A found in B
	Rated     int     // shared titles rated on both sides
	Union     int     // |A| + |B| - Shared
	Overlap   float64 // Shared / Union
	Agreement float64 // cosine in ModeBonus, 1 - mean gap / 4.5 in ModeSplit
	Score     float64 // in [0, 100], two decimals
}

type pair struct {
	a, b float64
}

// Compare scores a against b. It reports false when the catalogues share no
// titles, in which case no similarity is defined.
func Compare(a, b models.Catalogue, opts ...Option) (Result, bool) {
	o := options{mode: ModeBonus}
	for _, opt := range opts {
		opt(&o)
	}

	lookup := make(map[string]float64, len(b))
	for _, r := range b {
		lookup[r.Title] = r.Rating
	}

	shared := make([]pair, 0, len(a))
	for _, r := range a {
		if rating, ok := lookup[r.Title]; ok {
			shared = append(shared, pair{a: r.Rating, b: rating})
		}
	}
	if len(shared) == 0 {
		return Result{Mode: o.mode}, false
	}

	rated := make([]pair, 0, len(shared))
	for _, p := range shared {
		if p.a != 0 && p.b != 0 {
			rated = append(rated, p)
		}
	}

	union := len(a) + len(b) - len(shared)
	overlap := float64(len(shared)) / float64(union)

	res := Result{
		Mode:    o.mode,
		Shared:  len(shared),
		Rated:   len(rated),
		Union:   union,
		Overlap: overlap,
	}

	centeredA, centeredB := center(rated)
	var raw float64
	switch o.mode {
	case ModeSplit:
		res.Agreement = gapAgreement(centeredA, centeredB)
		raw = overlap*maxScore/2 + res.Agreement*maxScore/2
	default:
		res.Agreement = cosine(centeredA, centeredB)
		raw = overlap*maxScore + res.Agreement*maxScore
	}

	res.Score = round2(clamp(raw, 0, maxScore))
	return res, true
}

// Score returns the canonical ModeBonus score of a against b.
func Score(a, b models.Catalogue) (float64, bool) {
	res, ok := Compare(a, b)
	return res.Score, ok
}

// center subtracts each side's mean from its ratings.
func center(pairs []pair) ([]float64, []float64) {
	if len(pairs) == 0 {
		return nil, nil
	}

	var sumA, sumB float64
	for _, p := range pairs {
		sumA += p.a
		sumB += p.b
	}
	meanA := sumA / float64(len(pairs))
	meanB := sumB / float64(len(pairs))

	va := make([]float64, len(pairs))
	vb := make([]float64, len(pairs))
	for i, p := range pairs {
		va[i] = p.a - meanA
		vb[i] = p.b - meanB
	}
	return va, vb
}

// cosine is 0 when either vector has no magnitude.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot/(math.Sqrt(normA)*math.Sqrt(normB)), -1, 1)
}

// gapAgreement is 1 for identical centered ratings, falling linearly with
// the mean absolute gap, floored at 0. No rated pairs means no agreement.
func gapAgreement(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var gap float64
	for i := range a {
		gap += math.Abs(a[i] - b[i])
	}
	gap /= float64(len(a))
	return clamp(1-gap/maxCenteredGap, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
