package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// DefaultAdminUser is the principal seeded into a new store
const DefaultAdminUser = "admin"

// record is a committed or pending node
type record struct {
	id          string
	path        string
	primaryType string
	props       map[string]mediarepo.Value
	version     int64
}

func (r *record) clone() *record {
	c := *r
	c.props = make(map[string]mediarepo.Value, len(r.props))
	for k, v := range r.props {
		c.props[k] = v.Clone()
	}
	return &c
}

// Store implements mediarepo.ContentStore with an in-memory tree. Sessions
// work on private overlays that are merged into the committed tree on Save.
type Store struct {
	mu         sync.RWMutex
	nodes      map[string]*record
	principals map[string][]byte
	registry   *store.Registry

	adminUser    string
	passwordCost int
	logger       *slog.Logger
}

// Option represents a functional option for configuring the store
type Option func(*Store)

// WithAdminUser sets the name of the seeded admin principal
func WithAdminUser(name string) Option {
	return func(s *Store) {
		s.adminUser = name
	}
}

// WithPasswordCost sets the bcrypt cost used for stored passwords
func WithPasswordCost(cost int) Option {
	return func(s *Store) {
		s.passwordCost = cost
	}
}

// WithLogger sets the logger of the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store containing only the root node and an admin
// principal with mediarepo.DefaultAdminPassword.
func New(options ...Option) (*Store, error) {
	s := &Store{
		nodes:        make(map[string]*record),
		principals:   make(map[string][]byte),
		registry:     store.NewRegistry(),
		adminUser:    DefaultAdminUser,
		passwordCost: bcrypt.DefaultCost,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	if s.adminUser == "" {
		return nil, fmt.Errorf("admin user is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(mediarepo.DefaultAdminPassword), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	s.principals[s.adminUser] = hash
	s.nodes[store.RootPath] = &record{
		id:          uuid.NewString(),
		path:        store.RootPath,
		primaryType: mediarepo.NodeTypeRoot,
		props:       map[string]mediarepo.Value{},
		version:     1,
	}
	return s, nil
}

// Login implements mediarepo.ContentStore.
func (s *Store) Login(ctx context.Context, creds mediarepo.Credentials) (mediarepo.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	hash, ok := s.principals[creds.UserID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown user %s", mediarepo.ErrLoginFailed, creds.UserID)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid password for %s", mediarepo.ErrLoginFailed, creds.UserID)
	}
	return newSession(s, creds.UserID), nil
}

// Registry exposes the node type registry of the store.
func (s *Store) Registry() *store.Registry {
	return s.registry
}

// NodeCount returns the number of committed nodes including the root.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) checkPassword(user, password string) error {
	s.mu.RLock()
	hash, ok := s.principals[user]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown user %s", mediarepo.ErrLoginFailed, user)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return fmt.Errorf("%w: old password does not match", mediarepo.ErrLoginFailed)
	}
	return nil
}

func (s *Store) hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
}
