package fqcomp

import (
	"math"
	"strings"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

const (
	// NoiseFloor is the containment at or below which a hit is treated as
	// sequencing error or low-level homology rather than real content.
	NoiseFloor = 0.01

	// PhixThreshold is the PhiX containment above which a run is flagged.
	PhixThreshold = 0.05

	// HighUnknownThreshold triggers the "not in reference set" warning.
	HighUnknownThreshold = 0.5

	// PhixReferenceName is the normalized name of the PhiX control reference.
	PhixReferenceName = "Phix"
)

const (
	warningPhix          = "PhiX control contamination detected - possible sequencing failure"
	warningUnknown       = "High unknown content - organism may not be in reference set"
	warningMixtureSuffix = " mixture detected"
)

// Classify compares sample against every reference in lib and turns the
// containments into a composition breakdown and contamination verdict.
//
// Containments at or below NoiseFloor are dropped; the rest are rounded to
// four decimals and kept in library order. Overlapping references can
// explain the same k-mers, so the retained fractions may sum past 1; the
// unknown fraction is clamped at 0 rather than corrected.
//
// Verdict precedence: PhiX above PhixThreshold, then a mixture of more than
// one reference, then unknown content above HighUnknownThreshold (a warning
// that does not mark the sample contaminated).
func Classify(source string, readsSampled int, sample *Sketch, lib *Library) (*Result, error) {
	if sample.Len() == 0 {
		return nil, fqerrors.ErrZeroLengthSample
	}

	var (
		composition    = Composition{}
		totalExplained float64
		phixFraction   float64
	)
	for _, ref := range lib.refs {
		c, err := Containment(sample, ref.Sketch)
		if err != nil {
			return nil, err
		}
		if c <= NoiseFloor {
			continue
		}
		composition = append(composition, Component{Name: ref.Name, Fraction: round4(c)})
		totalExplained += c
		if ref.Name == PhixReferenceName {
			phixFraction = round4(c)
		}
	}

	res := &Result{
		Source:         source,
		ReadsSampled:   readsSampled,
		Composition:    composition,
		UnknownContent: round4(max(0, 1-totalExplained)),
		IsMixed:        len(composition) > 1,
	}

	switch {
	case phixFraction > PhixThreshold:
		res.PhixContamination = true
		res.ContaminationWarning = warningPhix
	case res.IsMixed:
		res.CrossContamination = true
		res.ContaminationWarning = strings.Join(composition.Names(), "/") + warningMixtureSuffix
	case res.UnknownContent > HighUnknownThreshold:
		res.ContaminationWarning = warningUnknown
	}
	res.IsContaminated = res.PhixContamination || res.CrossContamination

	return res, nil
}

// round4 rounds to four decimal places.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
