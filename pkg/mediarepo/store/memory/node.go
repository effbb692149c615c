package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// node is a handle on a path of a session view
type node struct {
	session     *session
	path        string
	id          string
	primaryType string
}

func (n *node) Name() string { return store.Name(n.path) }
func (n *node) Path() string { return n.path }
func (n *node) Identifier() string { return n.id }
func (n *node) PrimaryType() string { return n.primaryType }
func (n *node) Session() mediarepo.Session { return n.session }

func (n *node) IsNodeType(typeName string) bool {
	return n.session.store.registry.IsNodeType(n.primaryType, typeName)
}

// current returns the record behind the handle, failing when the node was
// removed or replaced since the handle was obtained.
func (n *node) current() (*record, error) {
	if err := n.session.checkLive(); err != nil {
		return nil, err
	}
	rec, ok := n.session.lookup(n.path)
	if !ok || rec.id != n.id {
		return nil, fmt.Errorf("%w: %s no longer exists", mediarepo.ErrInvalidItemState, n.path)
	}
	return rec, nil
}

func (n *node) AddNode(ctx context.Context, name, primaryType string) (mediarepo.Node, error) {
	if _, err := n.current(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if !n.session.store.registry.HasNodeType(primaryType) {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, primaryType)
	}
	path := store.Join(n.path, name)
	if _, exists := n.session.lookup(path); exists {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrItemExists, path)
	}

	s := n.session
	s.touch(path)
	delete(s.removed, path)
	rec := &record{
		id:          uuid.NewString(),
		path:        path,
		primaryType: primaryType,
		props:       map[string]mediarepo.Value{},
	}
	s.changes[path] = rec
	return s.node(rec), nil
}

func (n *node) GetNode(ctx context.Context, relPath string) (mediarepo.Node, error) {
	if _, err := n.current(); err != nil {
		return nil, err
	}
	return n.session.GetNode(ctx, store.Join(n.path, relPath))
}

func (n *node) HasNode(ctx context.Context, relPath string) (bool, error) {
	if _, err := n.current(); err != nil {
		return false, err
	}
	return n.session.NodeExists(ctx, store.Join(n.path, relPath))
}

func (n *node) Remove(ctx context.Context) error {
	if _, err := n.current(); err != nil {
		return err
	}
	if n.path == store.RootPath {
		return fmt.Errorf("%w: cannot remove root node", mediarepo.ErrConstraintViolation)
	}
	s := n.session
	for _, rec := range s.view() {
		if rec.path != n.path && !store.IsDescendant(rec.path, n.path) {
			continue
		}
		s.touch(rec.path)
		delete(s.changes, rec.path)
		if s.committedVersion(rec.path) > 0 {
			s.removed[rec.path] = true
		}
	}
	return nil
}

func (n *node) SetProperty(ctx context.Context, name string, value mediarepo.Value) error {
	if _, err := n.current(); err != nil {
		return err
	}
	if err := n.session.store.registry.CheckProperty(n.primaryType, name, value); err != nil {
		return err
	}
	rec, err := n.session.writable(n.path)
	if err != nil {
		return err
	}
	rec.props[name] = value.Clone()
	return nil
}

func (n *node) Property(ctx context.Context, name string) (mediarepo.Value, error) {
	rec, err := n.current()
	if err != nil {
		return mediarepo.Value{}, err
	}
	v, ok := propertyOf(rec, name)
	if !ok {
		return mediarepo.Value{}, fmt.Errorf("%w: property %s of %s", mediarepo.ErrPathNotFound, name, n.path)
	}
	return v, nil
}

func (n *node) HasProperty(ctx context.Context, name string) (bool, error) {
	rec, err := n.current()
	if err != nil {
		return false, err
	}
	_, ok := propertyOf(rec, name)
	return ok, nil
}

// propertyOf resolves stored and derived properties of a record.
func propertyOf(rec *record, name string) (mediarepo.Value, bool) {
	switch name {
	case mediarepo.PropertyPath:
		return mediarepo.StringValue(rec.path), true
	case mediarepo.PropertyName:
		return mediarepo.NameValue(store.Name(rec.path)), true
	case mediarepo.PropertyPrimaryType:
		return mediarepo.NameValue(rec.primaryType), true
	case mediarepo.PropertyUUID:
		return mediarepo.StringValue(rec.id), true
	}
	v, ok := rec.props[name]
	if !ok {
		return mediarepo.Value{}, false
	}
	return v.Clone(), true
}
