package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// session wraps one transaction. It is not safe for concurrent use.
type session struct {
	store *Store
	id    string
	user  string
	tx    pgx.Tx
	live  bool

	// touched maps node ids written in this transaction to their primary type
	touched         map[uuid.UUID]string
	pendingPassword []byte
	// blobs written by this transaction, deleted when it is rolled back
	writtenBlobs []string
	// blobs dereferenced by this transaction, deleted when it commits
	staleBlobs []string
}

func newSession(s *Store, user string, tx pgx.Tx) *session {
	return &session{
		store:   s,
		id:      uuid.NewString(),
		user:    user,
		tx:      tx,
		live:    true,
		touched: make(map[uuid.UUID]string),
	}
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

func (s *session) resetPending() {
	s.touched = make(map[uuid.UUID]string)
	s.pendingPassword = nil
	s.writtenBlobs = nil
	s.staleBlobs = nil
}

func (s *session) deleteBlobs(ctx context.Context, keys []string) {
	if s.store.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := s.store.blobs.Delete(ctx, key); err != nil {
			s.store.logger.Warn("failed to delete binary object", "key", key, "error", err)
		}
	}
}

// validate checks node type constraints of every node written in this transaction
func (s *session) validate(ctx context.Context) error {
	for id, primaryType := range s.touched {
		var path string
		var raw []byte
		err := s.tx.QueryRow(ctx, `SELECT path, properties FROM media_nodes WHERE id = $1`, id).Scan(&path, &raw)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return handlePostgresError("validate node", err)
		}
		props, err := decodeProperties(raw)
		if err != nil {
			return err
		}
		if err := s.store.registry.Validate(primaryType, props); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (s *session) Save(ctx context.Context) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if err := s.validate(ctx); err != nil {
		return err
	}
	if s.pendingPassword != nil {
		_, err := s.tx.Exec(ctx, `
			UPDATE media_principals SET password_hash = $2, updated_at = now() WHERE user_id = $1`,
			s.user, string(s.pendingPassword))
		if err != nil {
			return handlePostgresError("change password", err)
		}
	}
	if err := s.tx.Commit(ctx); err != nil {
		return handlePostgresError("commit session", err)
	}
	stale := s.staleBlobs
	s.resetPending()
	s.deleteBlobs(ctx, stale)

	tx, err := s.store.db.Begin(ctx)
	if err != nil {
		s.live = false
		return handlePostgresError("begin session", err)
	}
	s.tx = tx
	return nil
}

func (s *session) rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	written := s.writtenBlobs
	s.resetPending()
	s.deleteBlobs(ctx, written)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return handlePostgresError("rollback session", err)
	}
	return nil
}

func (s *session) Refresh(ctx context.Context, keepChanges bool) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if keepChanges {
		return nil
	}
	if err := s.rollback(ctx); err != nil {
		return err
	}
	tx, err := s.store.db.Begin(ctx)
	if err != nil {
		s.live = false
		return handlePostgresError("begin session", err)
	}
	s.tx = tx
	return nil
}

func (s *session) Logout(ctx context.Context) error {
	if !s.live {
		return nil
	}
	s.live = false
	return s.rollback(ctx)
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
	n := &node{session: s, path: path}
	err := s.tx.QueryRow(ctx, `SELECT id, primary_type FROM media_nodes WHERE path = $1`, path).
		Scan(&n.id, &n.primaryType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrPathNotFound, path)
	}
	if err != nil {
		return nil, handlePostgresError("get node", err)
	}
	return n, nil
}

func (s *session) NodeExists(ctx context.Context, path string) (bool, error) {
	if err := s.checkLive(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM media_nodes WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, handlePostgresError("node exists", err)
	}
	return exists, nil
}

func (s *session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if err := s.store.checkPassword(ctx, s.user, oldPassword); err != nil {
		return err
	}
	hash, err := bcryptHash(newPassword, s.store.passwordCost)
	if err != nil {
		return err
	}
	s.pendingPassword = hash
	return nil
}

func (s *session) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.store.registerNamespace(ctx, prefix, uri)
}

func (s *session) RegisterNodeType(ctx context.Context, def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.store.registerNodeType(ctx, def, allowUpdate)
}
