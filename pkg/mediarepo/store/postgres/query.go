package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// ExecuteQuery evaluates q inside the session transaction, so pending
// changes are visible. Matches are returned in path order.
func (s *session) ExecuteQuery(ctx context.Context, q mediarepo.Query) (*mediarepo.QueryResult, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	sql, args, err := compileQuery(q, s.store.registry)
	if err != nil {
		return nil, err
	}
	rows, err := s.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, handlePostgresError("execute query", err)
	}
	defer rows.Close()

	var matches []*node
	for rows.Next() {
		n := &node{session: s}
		if err := rows.Scan(&n.id, &n.path, &n.primaryType); err != nil {
			return nil, handlePostgresError("scan query row", err)
		}
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("execute query", err)
	}
	return buildResult(q, matches), nil
}

// compileQuery translates q into a single SELECT over media_nodes.
// Node types are expanded to their registered subtypes.
func compileQuery(q mediarepo.Query, reg *store.Registry) (string, []any, error) {
	if !reg.HasNodeType(q.Selector.NodeType) {
		return "", nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, q.Selector.NodeType)
	}
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var b strings.Builder
	b.WriteString("SELECT f.id, f.path, f.primary_type FROM media_nodes f")
	fmt.Fprintf(&b, "\nWHERE f.primary_type = ANY(%s)", bind(reg.SubtypesOf(q.Selector.NodeType)))

	p := q.Predicate
	if j := q.Join; j != nil {
		if !reg.HasNodeType(j.NodeType) {
			return "", nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, j.NodeType)
		}
		var cond string
		switch j.Kind {
		case mediarepo.JoinChild:
			cond = "j.parent_path = f.path"
		case mediarepo.JoinParent:
			cond = "j.path = f.parent_path"
		case mediarepo.JoinAncestor:
			cond = "j.path <> f.path AND (j.path = '/' OR left(f.path, length(j.path) + 1) = j.path || '/')"
		default:
			return "", nil, fmt.Errorf("%w: unknown join kind %d", mediarepo.ErrConstraintViolation, j.Kind)
		}
		fmt.Fprintf(&b, "\n  AND EXISTS (SELECT 1 FROM media_nodes j WHERE j.primary_type = ANY(%s) AND %s",
			bind(reg.SubtypesOf(j.NodeType)), cond)
		if p != nil && p.Alias == j.Alias {
			fmt.Fprintf(&b, " AND %s", predicateSQL("j", *p, bind))
			p = nil
		}
		b.WriteString(")")
	}
	if p != nil {
		if p.Alias != q.Selector.Alias {
			return "", nil, fmt.Errorf("%w: unknown alias %s", mediarepo.ErrConstraintViolation, p.Alias)
		}
		fmt.Fprintf(&b, "\n  AND %s", predicateSQL("f", *p, bind))
	}
	b.WriteString("\nORDER BY f.path")
	return b.String(), args, nil
}

func predicateSQL(alias string, p mediarepo.Predicate, bind func(any) string) string {
	switch p.Property {
	case mediarepo.PropertyPath:
		return fmt.Sprintf("%s.path = %s", alias, bind(p.Value))
	case mediarepo.PropertyName:
		return fmt.Sprintf("%s.name = %s", alias, bind(p.Value))
	case mediarepo.PropertyPrimaryType:
		return fmt.Sprintf("%s.primary_type = %s", alias, bind(p.Value))
	case mediarepo.PropertyUUID:
		return fmt.Sprintf("%s.id::text = %s", alias, bind(p.Value))
	}
	return fmt.Sprintf("%s.properties -> %s -> 'strings' ? %s", alias, bind(p.Property), bind(p.Value))
}

func buildResult(q mediarepo.Query, matches []*node) *mediarepo.QueryResult {
	if q.Projection == mediarepo.ProjectPaths {
		rows := make([]mediarepo.Row, 0, len(matches))
		for _, n := range matches {
			rows = append(rows, mediarepo.Row{mediarepo.FilePathColumn: mediarepo.StringValue(n.path)})
		}
		return mediarepo.NewQueryResult([]string{mediarepo.FilePathColumn}, rows, nil)
	}

	pathColumn := q.Selector.Alias + "." + mediarepo.PropertyPath
	typeColumn := q.Selector.Alias + "." + mediarepo.PropertyPrimaryType
	rows := make([]mediarepo.Row, 0, len(matches))
	nodes := make([]mediarepo.Node, 0, len(matches))
	for _, n := range matches {
		rows = append(rows, mediarepo.Row{
			pathColumn: mediarepo.StringValue(n.path),
			typeColumn: mediarepo.NameValue(n.primaryType),
		})
		nodes = append(nodes, n)
	}
	return mediarepo.NewQueryResult([]string{pathColumn, typeColumn}, rows, nodes)
}
