package memory

import (
	"context"
	"fmt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// ExecuteQuery evaluates q against the session view. Matches are returned
// in path order.
func (s *session) ExecuteQuery(ctx context.Context, q mediarepo.Query) (*mediarepo.QueryResult, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg := s.store.registry
	if !reg.HasNodeType(q.Selector.NodeType) {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, q.Selector.NodeType)
	}
	if q.Join != nil && !reg.HasNodeType(q.Join.NodeType) {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, q.Join.NodeType)
	}

	view := s.view()
	byPath := make(map[string]*record, len(view))
	for _, rec := range view {
		byPath[rec.path] = rec
	}

	var matches []*record
	for _, rec := range view {
		if !reg.IsNodeType(rec.primaryType, q.Selector.NodeType) {
			continue
		}
		if s.matches(q, rec, view, byPath) {
			matches = append(matches, rec)
		}
	}
	return buildResult(s, q, matches), nil
}

func (s *session) matches(q mediarepo.Query, sel *record, view []*record, byPath map[string]*record) bool {
	if q.Join == nil {
		return q.Predicate == nil || predicateHolds(*q.Predicate, sel)
	}
	for _, joined := range s.joined(*q.Join, sel, view, byPath) {
		if q.Predicate == nil {
			return true
		}
		target := sel
		if q.Predicate.Alias == q.Join.Alias {
			target = joined
		}
		if predicateHolds(*q.Predicate, target) {
			return true
		}
	}
	return false
}

func (s *session) joined(j mediarepo.Join, sel *record, view []*record, byPath map[string]*record) []*record {
	reg := s.store.registry
	var out []*record
	switch j.Kind {
	case mediarepo.JoinChild:
		for _, rec := range view {
			if rec.path != store.RootPath && store.Parent(rec.path) == sel.path && reg.IsNodeType(rec.primaryType, j.NodeType) {
				out = append(out, rec)
			}
		}
	case mediarepo.JoinParent:
		if sel.path == store.RootPath {
			return nil
		}
		if rec, ok := byPath[store.Parent(sel.path)]; ok && reg.IsNodeType(rec.primaryType, j.NodeType) {
			out = append(out, rec)
		}
	case mediarepo.JoinAncestor:
		for p := sel.path; p != store.RootPath; {
			p = store.Parent(p)
			if rec, ok := byPath[p]; ok && reg.IsNodeType(rec.primaryType, j.NodeType) {
				out = append(out, rec)
			}
		}
	}
	return out
}

func predicateHolds(p mediarepo.Predicate, rec *record) bool {
	v, ok := propertyOf(rec, p.Property)
	return ok && p.Matches(v)
}

func buildResult(s *session, q mediarepo.Query, matches []*record) *mediarepo.QueryResult {
	alias := q.Selector.Alias
	if q.Projection == mediarepo.ProjectPaths {
		rows := make([]mediarepo.Row, 0, len(matches))
		for _, rec := range matches {
			rows = append(rows, mediarepo.Row{mediarepo.FilePathColumn: mediarepo.StringValue(rec.path)})
		}
		return mediarepo.NewQueryResult([]string{mediarepo.FilePathColumn}, rows, nil)
	}

	pathColumn := alias + "." + mediarepo.PropertyPath
	typeColumn := alias + "." + mediarepo.PropertyPrimaryType
	rows := make([]mediarepo.Row, 0, len(matches))
	nodes := make([]mediarepo.Node, 0, len(matches))
	for _, rec := range matches {
		rows = append(rows, mediarepo.Row{
			pathColumn: mediarepo.StringValue(rec.path),
			typeColumn: mediarepo.NameValue(rec.primaryType),
		})
		nodes = append(nodes, s.node(rec))
	}
	return mediarepo.NewQueryResult([]string{pathColumn, typeColumn}, rows, nodes)
}
