package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// session is a copy-on-write view over the committed tree. It is not safe
// for concurrent use.
type session struct {
	store *Store
	id    string
	user  string
	live  bool

	changes map[string]*record
	removed map[string]bool
	// base holds the committed version of every touched path at the time
	// it was first touched; 0 means the path did not exist.
	base            map[string]int64
	pendingPassword []byte
}

func newSession(s *Store, user string) *session {
	sess := &session{store: s, id: uuid.NewString(), user: user, live: true}
	sess.reset()
	return sess
}

func (s *session) reset() {
	s.changes = make(map[string]*record)
	s.removed = make(map[string]bool)
	s.base = make(map[string]int64)
	s.pendingPassword = nil
}

func (s *session) ID() string { return s.id }
func (s *session) UserID() string { return s.user }
func (s *session) IsLive() bool { return s.live }

func (s *session) checkLive() error {
	if !s.live {
		return fmt.Errorf("session %s: %w", s.id, mediarepo.ErrSessionExpired)
	}
	return nil
}

// lookup resolves path in the session view.
func (s *session) lookup(path string) (*record, bool) {
	if rec, ok := s.changes[path]; ok {
		return rec, true
	}
	if s.removed[path] {
		return nil, false
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rec, ok := s.store.nodes[path]
	return rec, ok
}

func (s *session) committedVersion(path string) int64 {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	if rec, ok := s.store.nodes[path]; ok {
		return rec.version
	}
	return 0
}

func (s *session) touch(path string) {
	if _, ok := s.base[path]; !ok {
		s.base[path] = s.committedVersion(path)
	}
}

// writable returns the pending copy of the record at path.
func (s *session) writable(path string) (*record, error) {
	if rec, ok := s.changes[path]; ok {
		return rec, nil
	}
	rec, ok := s.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s was removed", mediarepo.ErrInvalidItemState, path)
	}
	s.touch(path)
	c := rec.clone()
	s.changes[path] = c
	return c, nil
}

// view returns all records visible to the session, sorted by path.
func (s *session) view() []*record {
	s.store.mu.RLock()
	out := make([]*record, 0, len(s.store.nodes)+len(s.changes))
	for path, rec := range s.store.nodes {
		if _, changed := s.changes[path]; changed || s.removed[path] {
			continue
		}
		out = append(out, rec)
	}
	s.store.mu.RUnlock()
	for _, rec := range s.changes {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func (s *session) node(rec *record) *node {
	return &node{session: s, path: rec.path, id: rec.id, primaryType: rec.primaryType}
}

func (s *session) Save(ctx context.Context) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.base) == 0 && s.pendingPassword == nil {
		return nil
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	for path, version := range s.base {
		current := int64(0)
		if rec, ok := st.nodes[path]; ok {
			current = rec.version
		}
		if current != version {
			return fmt.Errorf("%w: %s was modified by another session", mediarepo.ErrInvalidItemState, path)
		}
	}

	exists := func(path string) bool {
		if _, ok := s.changes[path]; ok {
			return true
		}
		_, ok := st.nodes[path]
		return ok && !s.removed[path]
	}
	for path, rec := range s.changes {
		if path != store.RootPath && !exists(store.Parent(path)) {
			return fmt.Errorf("%w: parent of %s does not exist", mediarepo.ErrInvalidItemState, path)
		}
		if err := st.registry.Validate(rec.primaryType, rec.props); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	for path := range s.removed {
		delete(st.nodes, path)
	}
	for path, rec := range s.changes {
		rec.version = s.base[path] + 1
		st.nodes[path] = rec
	}
	if s.pendingPassword != nil {
		st.principals[s.user] = s.pendingPassword
	}
	st.logger.Debug("session saved", "session_id", s.id, "changed", len(s.changes), "removed", len(s.removed))
	s.reset()
	return nil
}

func (s *session) Refresh(ctx context.Context, keepChanges bool) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if !keepChanges {
		s.reset()
	}
	return nil
}

func (s *session) Logout(ctx context.Context) error {
	s.reset()
	s.live = false
	return nil
}

func (s *session) RootNode(ctx context.Context) (mediarepo.Node, error) {
	return s.GetNode(ctx, store.RootPath)
}

func (s *session) GetNode(ctx context.Context, path string) (mediarepo.Node, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	rec, ok := s.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrPathNotFound, path)
	}
	return s.node(rec), nil
}

func (s *session) NodeExists(ctx context.Context, path string) (bool, error) {
	if err := s.checkLive(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}
	_, ok := s.lookup(path)
	return ok, nil
}

func (s *session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if err := s.store.checkPassword(s.user, oldPassword); err != nil {
		return err
	}
	hash, err := s.store.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.pendingPassword = hash
	return nil
}

func (s *session) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.store.registry.RegisterNamespace(prefix, uri)
}

func (s *session) RegisterNodeType(ctx context.Context, def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.store.registry.RegisterNodeType(def, allowUpdate)
}
