package analyzer

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/veilpii/veil/pkg/models"
)

// AnalyzeList analyzes each text with the settings of req. Responses are in
// input order. The first configuration error aborts the whole batch.
func (e *Engine) AnalyzeList(
	ctx context.Context,
	texts []string,
	req *models.AnalyzeRequest,
) ([]models.AnalyzeResponse, error) {
	if req == nil {
		req = &models.AnalyzeRequest{}
	}
	out := make([]models.AnalyzeResponse, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			r := *req
			r.Text = text
			resp, err := e.Analyze(gctx, &r)
			if err != nil {
				return err
			}
			out[i] = *resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeDict walks a decoded JSON document and analyzes every string in it.
// Strings and lists of strings are analyzed, nested maps are walked and other
// values are returned untouched. The key of each value is added to the
// request context for that value.
//
// keysToSkip names keys to leave out; nested keys use dot notation, e.g.
// "patient.id".
func (e *Engine) AnalyzeDict(
	ctx context.Context,
	doc map[string]any,
	req *models.AnalyzeRequest,
	keysToSkip []string,
) ([]models.DictAnalyzeResult, error) {
	if req == nil {
		req = &models.AnalyzeRequest{}
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.DictAnalyzeResult
	for _, key := range keys {
		if contains(keysToSkip, key) {
			continue
		}

		r := *req
		r.Context = append(append([]string(nil), req.Context...), key)

		switch v := doc[key].(type) {
		case string:
			resp, err := e.AnalyzeList(ctx, []string{v}, &r)
			if err != nil {
				return nil, err
			}
			out = append(out, models.DictAnalyzeResult{Key: key, Results: [][]models.EntityMatch{resp[0].Results}})
		case map[string]any:
			nested, err := e.AnalyzeDict(ctx, v, &r, nestedSkips(keysToSkip, key))
			if err != nil {
				return nil, err
			}
			out = append(out, models.DictAnalyzeResult{Key: key, Nested: nested})
		case []string:
			res, err := e.analyzeStrings(ctx, v, &r)
			if err != nil {
				return nil, err
			}
			out = append(out, models.DictAnalyzeResult{Key: key, Results: res})
		case []any:
			strs, ok := allStrings(v)
			if !ok {
				out = append(out, models.DictAnalyzeResult{Key: key, Value: v})
				continue
			}
			res, err := e.analyzeStrings(ctx, strs, &r)
			if err != nil {
				return nil, err
			}
			out = append(out, models.DictAnalyzeResult{Key: key, Results: res})
		default:
			out = append(out, models.DictAnalyzeResult{Key: key, Value: v})
		}
	}
	return out, nil
}

func (e *Engine) analyzeStrings(
	ctx context.Context,
	texts []string,
	req *models.AnalyzeRequest,
) ([][]models.EntityMatch, error) {
	responses, err := e.AnalyzeList(ctx, texts, req)
	if err != nil {
		return nil, err
	}
	out := make([][]models.EntityMatch, len(responses))
	for i := range responses {
		out[i] = responses[i].Results
	}
	return out, nil
}

// nestedSkips strips the "key." prefix from skip entries aimed below key.
func nestedSkips(keysToSkip []string, key string) []string {
	prefix := key + "."
	var out []string
	for _, k := range keysToSkip {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	return out
}

func allStrings(values []any) ([]string, bool) {
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
