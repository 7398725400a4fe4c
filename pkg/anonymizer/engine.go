// Package anonymizer rewrites the entities found by the analyzer according to
// per-entity operators, and reverses reversible operators such as encrypt.
package anonymizer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

type operatorSet map[models.OperatorType]Operator

func newOperatorSet(ops ...Operator) operatorSet {
	set := make(operatorSet, len(ops))
	for _, op := range ops {
		set[op.Type()] = op
	}
	return set
}

func (s operatorSet) names() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// Engine applies operators to analyzer results, and deanonymizers to the
// items of an earlier anonymization.
type Engine struct {
	operators     operatorSet
	deanonymizers operatorSet
}

var _ models.Anonymizer = (*Engine)(nil)

// NewEngine registers the builtin operators plus extra, which replace
// builtins of the same type.
func NewEngine(extra ...Operator) *Engine {
	return &Engine{
		operators:     newOperatorSet(append(builtinOperators(), extra...)...),
		deanonymizers: newOperatorSet(builtinDeanonymizers()...),
	}
}

// Operators lists the anonymization operator types, sorted.
func (e *Engine) Operators() []string { return e.operators.names() }

// Deanonymizers lists the operator types Deanonymize accepts, sorted.
func (e *Engine) Deanonymizers() []string { return e.deanonymizers.names() }

// Anonymize resolves conflicts between req.AnalyzerResults and applies the
// configured operator to each surviving span. Offsets are character offsets
// into req.Text; the returned items point into the anonymized text.
func (e *Engine) Anonymize(ctx context.Context, req *models.AnonymizeRequest) (*models.AnonymizeResponse, error) {
	if req == nil {
		return nil, models.NewBadRequestError("anonymize request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runes := []rune(req.Text)
	var results []models.EntityMatch
	if err := copier.CopyWithOption(&results, req.AnalyzerResults, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy analyzer results: %w", err)
	}
	for _, r := range results {
		if r.Start < 0 || r.Start > r.End || r.End > len(runes) {
			return nil, models.NewBadRequestError(
				fmt.Sprintf("result %s is outside the text of length %d", r, len(runes)),
			)
		}
	}

	operators, err := resolveOperators(e.operators, req.Operators, models.OperatorReplace)
	if err != nil {
		return nil, err
	}

	strategy := req.ConflictResolution
	if strategy == "" {
		strategy = models.MergeSimilarOrContained
	}
	results = removeConflicts(results, strategy)
	results = mergeWhitespaceSeparated(runes, results)

	var sb strings.Builder
	items := make([]models.AnonymizedItem, 0, len(results))
	cursor, outPos := 0, 0
	for _, r := range results {
		start := max(r.Start, cursor)
		if start >= r.End {
			log.Debugf("skipping %s, already covered by a previous entity", r)
			continue
		}
		outPos += writeRunes(&sb, runes[cursor:start])

		cfg, ok := operators[r.EntityType]
		if !ok {
			cfg = operators[models.DefaultOperatorKey]
		}
		op := e.operators[cfg.Type]
		replacement, err := op.Operate(string(runes[start:r.End]), r.EntityType, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s operator failed on %s: %w", cfg.Type, r.EntityType, err)
		}
		n := writeRunes(&sb, []rune(replacement))
		items = append(items, models.AnonymizedItem{
			Start:      outPos,
			End:        outPos + n,
			EntityType: r.EntityType,
			Text:       replacement,
			Operator:   cfg.Type,
		})
		outPos += n
		cursor = r.End
	}
	writeRunes(&sb, runes[cursor:])

	return &models.AnonymizeResponse{Text: sb.String(), Items: items}, nil
}

// Deanonymize applies the configured deanonymizer to every item of req,
// restoring text an earlier Anonymize call replaced. Items point into
// req.Text and must not overlap. Entity types without a deanonymizer are kept.
func (e *Engine) Deanonymize(ctx context.Context, req *models.DeanonymizeRequest) (*models.AnonymizeResponse, error) {
	if req == nil {
		return nil, models.NewBadRequestError("deanonymize request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	operators, err := resolveOperators(e.deanonymizers, req.Deanonymizers, models.OperatorKeep)
	if err != nil {
		return nil, err
	}

	runes := []rune(req.Text)
	items := append([]models.AnonymizedItem(nil), req.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start < items[j].Start })
	for i, it := range items {
		if it.Start < 0 || it.Start >= it.End || it.End > len(runes) {
			return nil, models.NewBadRequestError(fmt.Sprintf(
				"item %s[%d:%d] is outside the text of length %d", it.EntityType, it.Start, it.End, len(runes),
			))
		}
		if i > 0 && it.Start < items[i-1].End {
			return nil, models.NewBadRequestError(fmt.Sprintf(
				"items %s[%d:%d] and %s[%d:%d] overlap",
				items[i-1].EntityType, items[i-1].Start, items[i-1].End, it.EntityType, it.Start, it.End,
			))
		}
	}

	var sb strings.Builder
	out := make([]models.AnonymizedItem, 0, len(items))
	cursor, outPos := 0, 0
	for _, it := range items {
		outPos += writeRunes(&sb, runes[cursor:it.Start])

		cfg, ok := operators[it.EntityType]
		if !ok {
			cfg = operators[models.DefaultOperatorKey]
		}
		restored, err := e.deanonymizers[cfg.Type].Operate(string(runes[it.Start:it.End]), it.EntityType, cfg)
		if err != nil {
			return nil, err
		}
		n := writeRunes(&sb, []rune(restored))
		out = append(out, models.AnonymizedItem{
			Start:      outPos,
			End:        outPos + n,
			EntityType: it.EntityType,
			Text:       restored,
			Operator:   cfg.Type,
		})
		outPos += n
		cursor = it.End
	}
	writeRunes(&sb, runes[cursor:])

	return &models.AnonymizeResponse{Text: sb.String(), Items: out}, nil
}

// resolveOperators validates every configured operator against set and adds
// a DEFAULT entry of type fallback when none is configured.
func resolveOperators(
	set operatorSet,
	configured map[string]models.OperatorConfig,
	fallback models.OperatorType,
) (map[string]models.OperatorConfig, error) {
	out := make(map[string]models.OperatorConfig, len(configured)+1)
	for entity, cfg := range configured {
		cfg, err := withDefaults(cfg, fallback)
		if err != nil {
			return nil, err
		}
		op, ok := set[cfg.Type]
		if !ok {
			return nil, models.NewOperatorConfigError(string(cfg.Type), "unknown operator")
		}
		if err := op.Validate(cfg); err != nil {
			return nil, err
		}
		out[entity] = cfg
	}
	if _, ok := out[models.DefaultOperatorKey]; !ok {
		out[models.DefaultOperatorKey] = models.OperatorConfig{Type: fallback}
	}
	return out, nil
}

// removeConflicts merges overlapping results of one type into their union,
// drops results contained in another result and, for RemoveIntersections,
// trims the remaining partial overlaps in favour of the higher score.
// The result is sorted by start.
func removeConflicts(results []models.EntityMatch, strategy models.ConflictStrategy) []models.EntityMatch {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Start != results[j].Start {
			return results[i].Start < results[j].Start
		}
		return results[i].End > results[j].End
	})

	// same type overlaps collapse into one span with the best score
	var merged []models.EntityMatch
	for _, r := range results {
		found := false
		for i := range merged {
			if merged[i].EntityType == r.EntityType && merged[i].Overlaps(r) {
				merged[i].Start = min(merged[i].Start, r.Start)
				merged[i].End = max(merged[i].End, r.End)
				merged[i].Score = max(merged[i].Score, r.Score)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}

	var unique []models.EntityMatch
	for i, r := range merged {
		conflicted := false
		for j, o := range merged {
			if i != j && hasConflict(r, o, i > j) {
				conflicted = true
				break
			}
		}
		if !conflicted {
			unique = append(unique, r)
		}
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Start < unique[j].Start })

	if strategy != models.RemoveIntersections {
		return unique
	}
	for i := 0; i+1 < len(unique); i++ {
		cur, next := &unique[i], &unique[i+1]
		if cur.End <= next.Start {
			continue
		}
		if cur.Score >= next.Score {
			next.Start = cur.End
		} else {
			cur.End = next.Start
		}
	}
	out := unique[:0]
	for _, r := range unique {
		if r.Start < r.End {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// hasConflict reports whether r loses to o: o spans the same characters with
// a higher score, or o strictly contains r. Identical spans with equal scores
// keep the earlier result.
func hasConflict(r, o models.EntityMatch, later bool) bool {
	if r.SameSpan(o) {
		if r.Score != o.Score {
			return r.Score < o.Score
		}
		return later
	}
	return o.Contains(r)
}

// mergeWhitespaceSeparated joins neighbouring results of the same type that
// are separated only by spaces.
func mergeWhitespaceSeparated(text []rune, results []models.EntityMatch) []models.EntityMatch {
	var out []models.EntityMatch
	for _, r := range results {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.EntityType == r.EntityType && prev.End < r.Start &&
				strings.Trim(string(text[prev.End:r.Start]), " ") == "" {
				out[n-1].End = r.End
				out[n-1].Score = max(prev.Score, r.Score)
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func writeRunes(sb *strings.Builder, runes []rune) int {
	for _, r := range runes {
		sb.WriteRune(r)
	}
	return len(runes)
}
