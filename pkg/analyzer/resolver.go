package analyzer

import (
	"math"
	"sort"
	"strings"

	"github.com/veilpii/veil/pkg/models"
)

// ResolveOptions controls ConflictResolver behaviour for a single text.
type ResolveOptions struct {
	// ScoreThreshold drops matches scoring below it. Zero-score matches are
	// always dropped.
	ScoreThreshold float64
	// Entities, when non-empty, is an allow-list of entity types.
	Entities []string
	Mode     models.ConflictMode
	// TextLength is the character length of the analyzed text. Matches ending
	// past it are invalid. A negative value disables the check.
	TextLength int
	// RecognizerRank orders recognizers by declaration, keyed by recognizer
	// identifier. Lower rank wins ties on identical spans.
	RecognizerRank map[string]int
}

// ResolveStats counts matches removed by each step.
type ResolveStats struct {
	Invalid         int
	BelowThreshold  int
	NotRequested    int
	SameTypeOverlap int
	Contained       int
}

func (s ResolveStats) Dropped() int {
	return s.Invalid + s.BelowThreshold + s.NotRequested + s.SameTypeOverlap + s.Contained
}

// ConflictResolver merges the matches of many recognizers into one
// deterministic, de-overlapped list.
type ConflictResolver struct {
	opts ResolveOptions
}

func NewConflictResolver(opts ResolveOptions) *ConflictResolver {
	if opts.Mode == "" {
		opts.Mode = models.ConflictModeStrict
	}
	return &ConflictResolver{opts: opts}
}

// Resolve never fails. Malformed matches are dropped and counted in the stats.
// The input slice is not modified; returned matches are copies.
func (cr *ConflictResolver) Resolve(matches []models.EntityMatch) ([]models.EntityMatch, ResolveStats) {
	var stats ResolveStats

	filtered := cr.filter(matches, &stats)

	survivors := cr.removeSameTypeOverlaps(filtered, &stats)

	if cr.opts.Mode == models.ConflictModeStrict {
		survivors = cr.removeContained(survivors, &stats)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return cr.outputLess(survivors[i], survivors[j])
	})

	return survivors, stats
}

// Resolve is a convenience wrapper around ConflictResolver.
func Resolve(matches []models.EntityMatch, opts ResolveOptions) ([]models.EntityMatch, ResolveStats) {
	return NewConflictResolver(opts).Resolve(matches)
}

func (cr *ConflictResolver) filter(matches []models.EntityMatch, stats *ResolveStats) []models.EntityMatch {
	var allowed map[string]struct{}
	if len(cr.opts.Entities) > 0 {
		allowed = make(map[string]struct{}, len(cr.opts.Entities))
		for _, e := range cr.opts.Entities {
			allowed[e] = struct{}{}
		}
	}

	out := make([]models.EntityMatch, 0, len(matches))
	for _, m := range matches {
		if m.Start < 0 || m.Start >= m.End || math.IsNaN(m.Score) ||
			(cr.opts.TextLength >= 0 && m.End > cr.opts.TextLength) {
			stats.Invalid++
			continue
		}
		score := clampScore(m.Score)
		if score <= models.MinScore || score < cr.opts.ScoreThreshold {
			stats.BelowThreshold++
			continue
		}
		if allowed != nil {
			if _, ok := allowed[m.EntityType]; !ok {
				stats.NotRequested++
				continue
			}
		}
		c := m.Clone()
		c.Score = score
		out = append(out, c)
	}
	return out
}

// removeSameTypeOverlaps sweeps each entity type left to right and keeps the
// better of any two overlapping matches.
func (cr *ConflictResolver) removeSameTypeOverlaps(
	matches []models.EntityMatch,
	stats *ResolveStats,
) []models.EntityMatch {
	groups := make(map[string][]models.EntityMatch)
	for _, m := range matches {
		groups[m.EntityType] = append(groups[m.EntityType], m)
	}

	out := make([]models.EntityMatch, 0, len(matches))
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return cr.better(a, b)
		})

		kept := group[:0:0]
		for _, m := range group {
			if len(kept) == 0 {
				kept = append(kept, m)
				continue
			}
			last := &kept[len(kept)-1]
			if m.Start < last.End {
				if cr.sweepBetter(m, *last) {
					*last = m
				}
				stats.SameTypeOverlap++
				continue
			}
			kept = append(kept, m)
		}
		out = append(out, kept...)
	}
	return out
}

// removeContained drops, for every pair of matches where one span contains
// the other, whichever of the two loses. Partial overlaps are left alone.
// Removal is evaluated against the full input so the outcome does not depend
// on visiting order.
func (cr *ConflictResolver) removeContained(
	matches []models.EntityMatch,
	stats *ResolveStats,
) []models.EntityMatch {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return cr.better(a, b)
	})

	removed := make([]bool, len(matches))
	for i := range matches {
		outer := matches[i]
		for j := i + 1; j < len(matches) && matches[j].Start < outer.End; j++ {
			inner := matches[j]
			if inner.End > outer.End {
				continue
			}
			if cr.containmentWinner(outer, inner) {
				removed[j] = true
			} else {
				removed[i] = true
			}
		}
	}

	out := matches[:0:0]
	for i, m := range matches {
		if removed[i] {
			stats.Contained++
			continue
		}
		out = append(out, m)
	}
	return out
}

// containmentWinner reports whether outer beats inner, where outer contains
// inner. Higher score wins; on a tie the larger span wins; identical spans
// fall back to recognizer declaration order.
func (cr *ConflictResolver) containmentWinner(outer, inner models.EntityMatch) bool {
	if outer.Score != inner.Score {
		return outer.Score > inner.Score
	}
	if outer.Len() != inner.Len() {
		return outer.Len() > inner.Len()
	}
	return cr.tieBreak(outer, inner) <= 0
}

// sweepBetter reports whether challenger replaces current in the same-type
// sweep: higher score, then earlier start, then longer span.
func (cr *ConflictResolver) sweepBetter(challenger, current models.EntityMatch) bool {
	if challenger.Score != current.Score {
		return challenger.Score > current.Score
	}
	if challenger.Start != current.Start {
		return challenger.Start < current.Start
	}
	if challenger.Len() != current.Len() {
		return challenger.Len() > current.Len()
	}
	return cr.tieBreak(challenger, current) < 0
}

// better is a total order used to sort candidates: higher score, longer span,
// then the deterministic tie-break.
func (cr *ConflictResolver) better(a, b models.EntityMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}
	return cr.tieBreak(a, b) < 0
}

func (cr *ConflictResolver) outputLess(a, b models.EntityMatch) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	return cr.tieBreak(a, b) < 0
}

func (cr *ConflictResolver) rank(m models.EntityMatch) int {
	if r, ok := cr.opts.RecognizerRank[m.RecognizerIdentifier()]; ok {
		return r
	}
	return math.MaxInt
}

// tieBreak orders matches by recognizer rank, then by fields that make the
// order independent of input permutation.
func (cr *ConflictResolver) tieBreak(a, b models.EntityMatch) int {
	if ra, rb := cr.rank(a), cr.rank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.EntityType, b.EntityType); c != 0 {
		return c
	}
	if c := strings.Compare(a.RecognizerIdentifier(), b.RecognizerIdentifier()); c != 0 {
		return c
	}
	if a.Start != b.Start {
		if a.Start < b.Start {
			return -1
		}
		return 1
	}
	if a.End != b.End {
		if a.End < b.End {
			return -1
		}
		return 1
	}
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	return strings.Compare(explanationKey(a), explanationKey(b))
}

func explanationKey(m models.EntityMatch) string {
	if m.AnalysisExplanation == nil {
		return ""
	}
	return m.AnalysisExplanation.PatternName + "\x00" + m.AnalysisExplanation.SupportiveContextWord
}

func clampScore(s float64) float64 {
	return math.Max(models.MinScore, math.Min(models.MaxScore, s))
}
