package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/agora/internal/errs"
)

// Strengths are computed in integer percent and exposed as float64, so
// additive bonuses land exactly on the decimal values (50+20 → 0.7).
const (
	concessionFullPct        = 100
	concessionPartialPct     = 60
	concessionConditionalPct = 40

	rebuttalBasePct  = 50
	rebuttalBonusPct = 20

	supportPct = 50

	maxPct = 100
)

// Strength scores an edge of kind and subtype pointing at a record of the
// given structure.
//
//   - concession: full 1.0, partial 0.6, conditional 0.4
//   - rebuttal: 0.5, plus 0.2 for a logical rebuttal of a deductive record,
//     plus 0.2 for an empirical rebuttal of an empirical record, capped at 1.0
//   - support: 0.5
func Strength(kind Kind, subtype string, target Structure) (float64, error) {
	pct, err := strengthPercent(kind, subtype, target)
	if err != nil {
		return 0, err
	}
	return float64(pct) / 100, nil
}

func strengthPercent(kind Kind, subtype string, target Structure) (int, error) {
	if err := checkSubtype(kind, subtype); err != nil {
		return 0, err
	}

	switch kind {
	case KindConcedesTo:
		switch subtype {
		case ConcessionFull:
			return concessionFullPct, nil
		case ConcessionPartial:
			return concessionPartialPct, nil
		default:
			return concessionConditionalPct, nil
		}

	case KindRebuts:
		pct := rebuttalBasePct
		if subtype == RebuttalLogical && target == StructureDeductive {
			pct += rebuttalBonusPct
		}
		if subtype == RebuttalEmpirical && target == StructureEmpirical {
			pct += rebuttalBonusPct
		}
		return min(pct, maxPct), nil

	default:
		return supportPct, nil
	}
}

// checkSubtype verifies kind is known and subtype is accepted for it.
func checkSubtype(kind Kind, subtype string) error {
	allowed, ok := subtypes[kind]
	if !ok {
		return errs.Validation("add_edge", fmt.Sprintf("unknown relationship kind %q", kind))
	}
	if !slices.Contains(allowed, subtype) {
		return errs.Validation("add_edge", fmt.Sprintf("subtype %q is not valid for %s", subtype, kind))
	}
	return nil
}
