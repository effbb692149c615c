package mediarepo

import (
	"context"
)

// Credentials identify a principal of the content store
type Credentials struct {
	UserID   string
	Password string
}

// ContentStore is a hierarchical, session based content store
type ContentStore interface {
	// Login opens a new session. It returns ErrLoginFailed for unknown
	// users or wrong passwords.
	Login(ctx context.Context, creds Credentials) (Session, error)
}

// Session is a unit of work against a ContentStore. Changes made through a
// session stay private to it until Save.
type Session interface {
	// ID returns a unique session identifier
	ID() string

	// UserID returns the principal the session was opened for
	UserID() string

	// IsLive reports whether the session can still be used
	IsLive() bool

	// Save persists all pending changes
	Save(ctx context.Context) error

	// Refresh discards pending changes unless keepChanges is set, and
	// reloads committed state
	Refresh(ctx context.Context, keepChanges bool) error

	// Logout releases the session. Pending changes are discarded.
	Logout(ctx context.Context) error

	// RootNode returns the node at "/"
	RootNode(ctx context.Context) (Node, error)

	// GetNode returns the node at an absolute path, or ErrPathNotFound
	GetNode(ctx context.Context, path string) (Node, error)

	// NodeExists reports whether a node exists at an absolute path
	NodeExists(ctx context.Context, path string) (bool, error)

	// ChangePassword changes the password of the session user. The change
	// takes effect on Save.
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error

	// RegisterNamespace registers a prefix to URI mapping. It returns
	// ErrNamespaceExists when the prefix is already registered.
	RegisterNamespace(ctx context.Context, prefix, uri string) error

	// RegisterNodeType registers or, when allowUpdate is set, replaces a
	// node type definition.
	RegisterNodeType(ctx context.Context, def NodeTypeDefinition, allowUpdate bool) error

	// ExecuteQuery evaluates a structured query against the session view
	ExecuteQuery(ctx context.Context, q Query) (*QueryResult, error)
}

// Node is a path addressed item of the content tree
type Node interface {
	Name() string
	Path() string
	Identifier() string
	PrimaryType() string

	// IsNodeType reports whether the node's primary type is typeName or
	// one of its supertypes
	IsNodeType(typeName string) bool

	// Session returns the session the node was obtained from
	Session() Session

	// AddNode creates a child. It returns ErrItemExists when a child with
	// that name exists and ErrNoSuchNodeType for unregistered types.
	AddNode(ctx context.Context, name, primaryType string) (Node, error)

	// GetNode resolves a path relative to this node, or ErrPathNotFound
	GetNode(ctx context.Context, relPath string) (Node, error)

	HasNode(ctx context.Context, relPath string) (bool, error)

	// Remove deletes the node and its subtree
	Remove(ctx context.Context) error

	SetProperty(ctx context.Context, name string, value Value) error

	// Property returns the named property, or ErrPathNotFound when unset
	Property(ctx context.Context, name string) (Value, error)

	HasProperty(ctx context.Context, name string) (bool, error)
}

// NodeTypeDefinition describes a node type to register
type NodeTypeDefinition struct {
	Name       string               `json:"name"`
	SuperTypes []string             `json:"super_types"`
	Properties []PropertyDefinition `json:"properties,omitempty"`
}

// PropertyDefinition is a property template of a node type
type PropertyDefinition struct {
	Name               string       `json:"name"`
	RequiredType       PropertyType `json:"required_type"`
	Mandatory          bool         `json:"mandatory,omitempty"`
	Multiple           bool         `json:"multiple,omitempty"`
	FullTextSearchable bool         `json:"full_text_searchable,omitempty"`
}
