package mediarepo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// FilePathColumn is the column path projections are returned in
	FilePathColumn = "filePath"

	// NoPath replaces a missing FilePathColumn value in ExtractFilePaths
	NoPath = "No Path"
)

// Query aliases
const (
	FileAlias     = "file"
	ResourceAlias = "resource"
	CategoryAlias = "category"
)

// JoinKind relates the joined node to the selected one
type JoinKind int

const (
	// JoinChild joins a direct child of the selected node
	JoinChild JoinKind = iota + 1
	// JoinParent joins the direct parent of the selected node
	JoinParent
	// JoinAncestor joins any ancestor of the selected node
	JoinAncestor
)

// Projection selects what a query returns per match
type Projection int

const (
	// ProjectPaths returns one row per match with the path in FilePathColumn
	ProjectPaths Projection = iota + 1
	// ProjectNodes returns the matched nodes
	ProjectNodes
)

// Selector is the node type a query selects
type Selector struct {
	NodeType string
	Alias    string
}

// Join constrains the selected node by a related node
type Join struct {
	Kind     JoinKind
	NodeType string
	Alias    string
}

// Predicate compares a property of the aliased node with a literal. A
// multi valued property matches when one of its elements is equal.
// Quoted controls only how Statement renders the literal.
type Predicate struct {
	Alias    string
	Property string
	Value    string
	Quoted   bool
}

// Query is a structured tree query. Engines evaluate the structure and
// bind Predicate.Value as a parameter; Statement renders the textual form.
type Query struct {
	Selector   Selector
	Join       *Join
	Predicate  *Predicate
	Projection Projection
}

func fileSelector() Selector {
	return Selector{NodeType: NodeTypeMedia, Alias: FileAlias}
}

func resourceJoin() *Join {
	return &Join{Kind: JoinChild, NodeType: NodeTypeContent, Alias: ResourceAlias}
}

// QueryAllFilePaths selects the paths of all file nodes.
func QueryAllFilePaths() Query {
	return Query{Selector: fileSelector(), Projection: ProjectPaths}
}

// QueryAllResources selects all file nodes.
func QueryAllResources() Query {
	return Query{Selector: fileSelector(), Projection: ProjectNodes}
}

// QueryByMimeType selects file nodes whose content has the given mime type.
func QueryByMimeType(mt MimeType, projection Projection) Query {
	return Query{
		Selector:   fileSelector(),
		Join:       resourceJoin(),
		Predicate:  &Predicate{Alias: ResourceAlias, Property: PropertyMimeType, Value: mt.String()},
		Projection: projection,
	}
}

// QueryByCategory selects file nodes below the given category node. File
// nodes sit two levels below their category, so the join is on ancestry.
func QueryByCategory(c CategoryType, projection Projection) Query {
	return Query{
		Selector:   fileSelector(),
		Join:       &Join{Kind: JoinAncestor, NodeType: NodeTypeCategory, Alias: CategoryAlias},
		Predicate:  &Predicate{Alias: CategoryAlias, Property: PropertyName, Value: c.NodeName()},
		Projection: projection,
	}
}

// QueryByTag selects file nodes whose content carries tag as one of its tags.
func QueryByTag(tag string, projection Projection) Query {
	return Query{
		Selector:   fileSelector(),
		Join:       resourceJoin(),
		Predicate:  &Predicate{Alias: ResourceAlias, Property: PropertyTags, Value: tag, Quoted: true},
		Projection: projection,
	}
}

// Statement renders the query text with literals interpolated as they are,
// quoted only where Predicate.Quoted is set.
func (q Query) Statement() string {
	return q.render(func(p Predicate) string {
		if p.Quoted {
			return "'" + p.Value + "'"
		}
		return p.Value
	})
}

// SafeStatement renders the query text with every literal quoted and
// escaped.
func (q Query) SafeStatement() string {
	return q.render(func(p Predicate) string {
		return "'" + strings.ReplaceAll(p.Value, "'", "''") + "'"
	})
}

func (q Query) render(literal func(Predicate) string) string {
	var b strings.Builder
	alias := q.Selector.Alias
	if q.Projection == ProjectPaths {
		fmt.Fprintf(&b, "SELECT %s.[%s] AS %s", alias, PropertyPath, FilePathColumn)
	} else {
		fmt.Fprintf(&b, "SELECT %s.*", alias)
	}
	fmt.Fprintf(&b, "\nFROM [%s] AS %s", q.Selector.NodeType, alias)
	if j := q.Join; j != nil {
		var cond string
		switch j.Kind {
		case JoinChild:
			cond = fmt.Sprintf("ISCHILDNODE(%s, %s)", j.Alias, alias)
		case JoinParent:
			cond = fmt.Sprintf("ISCHILDNODE(%s, %s)", alias, j.Alias)
		case JoinAncestor:
			cond = fmt.Sprintf("ISDESCENDANTNODE(%s, %s)", alias, j.Alias)
		}
		fmt.Fprintf(&b, "\nINNER JOIN [%s] AS %s ON %s", j.NodeType, j.Alias, cond)
	}
	if p := q.Predicate; p != nil {
		fmt.Fprintf(&b, "\nWHERE %s.[%s] = %s", p.Alias, p.Property, literal(*p))
	}
	return b.String()
}

// Matches reports whether a property value satisfies the predicate.
func (p Predicate) Matches(v Value) bool {
	for _, s := range v.Strings {
		if s == p.Value {
			return true
		}
	}
	return false
}

// Row is a query result row keyed by column name
type Row map[string]Value

// RowIterator walks the rows of a query result
type RowIterator struct {
	rows []Row
	pos  int
}

// Next advances to the next row.
func (it *RowIterator) Next() bool {
	if it.pos >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

// Row returns the current row.
func (it *RowIterator) Row() Row {
	return it.rows[it.pos-1]
}

// Size returns the total number of rows.
func (it *RowIterator) Size() int {
	return len(it.rows)
}

// NodeIterator walks the nodes of a query result
type NodeIterator struct {
	nodes []Node
	pos   int
}

// Next advances to the next node.
func (it *NodeIterator) Next() bool {
	if it.pos >= len(it.nodes) {
		return false
	}
	it.pos++
	return true
}

// Node returns the current node.
func (it *NodeIterator) Node() Node {
	return it.nodes[it.pos-1]
}

// Size returns the total number of nodes.
func (it *NodeIterator) Size() int {
	return len(it.nodes)
}

// QueryResult holds the outcome of ExecuteQuery. Rows and Nodes return new
// cursors on every call.
type QueryResult struct {
	columns []string
	rows    []Row
	nodes   []Node
}

// NewQueryResult is used by store implementations to build results.
func NewQueryResult(columns []string, rows []Row, nodes []Node) *QueryResult {
	return &QueryResult{columns: columns, rows: rows, nodes: nodes}
}

// Columns returns a copy of the result column names.
func (r *QueryResult) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Rows returns a cursor over the result rows.
func (r *QueryResult) Rows() *RowIterator {
	return &RowIterator{rows: r.rows}
}

// Nodes returns a cursor over the result nodes.
func (r *QueryResult) Nodes() *NodeIterator {
	return &NodeIterator{nodes: r.nodes}
}

// QueryExecutor runs queries on live sessions
type QueryExecutor struct {
	logger *slog.Logger
}

// NewQueryExecutor returns an executor logging to logger, or slog.Default when nil.
func NewQueryExecutor(logger *slog.Logger) *QueryExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExecutor{logger: logger}
}

// Execute runs q on session. It fails with ErrSessionExpired when the
// session is no longer live.
func (e *QueryExecutor) Execute(ctx context.Context, session Session, q Query) (*QueryResult, error) {
	if !session.IsLive() {
		return nil, fmt.Errorf("execute query: %w", ErrSessionExpired)
	}
	e.logger.Debug("executing query", "session_id", session.ID(), "statement", q.Statement())
	result, err := session.ExecuteQuery(ctx, q)
	if err != nil {
		e.logger.Error("query failed", "statement", q.Statement(), "error", err)
		return nil, err
	}
	return result, nil
}

// ResultInterpreter extracts domain values from query results
type ResultInterpreter struct{}

// HasResult reports whether the result has at least one row.
func (ResultInterpreter) HasResult(r *QueryResult) bool {
	return r.Rows().Size() > 0
}

// ExtractFilePaths returns the FilePathColumn of every row. Rows without a
// usable value yield NoPath.
func (ResultInterpreter) ExtractFilePaths(r *QueryResult) []string {
	it := r.Rows()
	paths := make([]string, 0, it.Size())
	for it.Next() {
		path := NoPath
		if v, ok := it.Row()[FilePathColumn]; ok {
			if s, err := v.AsString(); err == nil {
				path = s
			}
		}
		paths = append(paths, path)
	}
	return paths
}

// NodesFromResult materializes the node cursor in result order.
func (ResultInterpreter) NodesFromResult(r *QueryResult) []Node {
	it := r.Nodes()
	nodes := make([]Node, 0, it.Size())
	for it.Next() {
		nodes = append(nodes, it.Node())
	}
	return nodes
}
