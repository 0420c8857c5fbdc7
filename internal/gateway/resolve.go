package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"hospital-frontend/pkg/logger"
)

// Source is one place a Resolver may look a field up. Fetch is called at most
// once per Resolver.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) (map[string]any, bool)
}

// ResultSource adapts a gateway call into a Source whose document is the
// call's data object.
func ResultSource(name string, call func(ctx context.Context) Result) Source {
	return Source{
		Name: name,
		Fetch: func(ctx context.Context) (map[string]any, bool) {
			res := call(ctx)
			if !res.OK() {
				logger.From(ctx).Info("resolver source unavailable",
					slog.String("source", name), slog.String("message", res.Message()))
				return nil, false
			}
			var doc map[string]any
			if err := json.Unmarshal(res.Envelope.Data, &doc); err != nil {
				return nil, false
			}
			return doc, true
		},
	}
}

// StaticSource wraps an already-loaded document.
func StaticSource(name string, doc map[string]any) Source {
	return Source{Name: name, Fetch: func(context.Context) (map[string]any, bool) { return doc, doc != nil }}
}

// Resolver answers field lookups from a priority-ordered list of sources,
// fetching each source lazily. It is request-scoped and not safe for
// concurrent use.
type Resolver struct {
	sources []Source
	fetched []bool
	docs    []map[string]any
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		fetched: make([]bool, len(sources)),
		docs:    make([]map[string]any, len(sources)),
	}
}

// Lookup returns the first non-empty value found under any of paths, trying
// sources in order. Paths are dotted ("profile.phone").
func (r *Resolver) Lookup(ctx context.Context, paths ...string) (value, source string, ok bool) {
	for i := range r.sources {
		doc := r.doc(ctx, i)
		if doc == nil {
			continue
		}
		for _, p := range paths {
			if v, found := lookupPath(doc, p); found {
				return v, r.sources[i].Name, true
			}
		}
	}
	return "", "", false
}

// Any is Lookup without the source name and with an explicit fallback.
func (r *Resolver) Any(ctx context.Context, fallback string, paths ...string) string {
	if v, _, ok := r.Lookup(ctx, paths...); ok {
		return v
	}
	return fallback
}

func (r *Resolver) doc(ctx context.Context, i int) map[string]any {
	if !r.fetched[i] {
		r.fetched[i] = true
		if doc, ok := r.sources[i].Fetch(ctx); ok {
			r.docs[i] = doc
		}
	}
	return r.docs[i]
}

func lookupPath(doc map[string]any, path string) (string, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
