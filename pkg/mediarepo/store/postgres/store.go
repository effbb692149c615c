package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/binarykey"
	"github.com/tendant/simple-media/pkg/mediarepo/blob"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

//go:embed schema.sql
var schemaSQL string

// DefaultAdminUser is the principal seeded by Migrate
const DefaultAdminUser = "admin"

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can start transactions, such as *pgxpool.Pool
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements mediarepo.ContentStore using PostgreSQL
type Store struct {
	db       DB
	registry *store.Registry
	blobs    blob.Store
	keys     binarykey.Generator

	adminUser    string
	passwordCost int
	logger       *slog.Logger
}

// Option represents a functional option for configuring the store
type Option func(*Store)

// WithBinaryStore offloads binary property values to blobs
func WithBinaryStore(blobs blob.Store) Option {
	return func(s *Store) {
		s.blobs = blobs
	}
}

// WithKeyGenerator sets how object keys of offloaded binaries are built
func WithKeyGenerator(keys binarykey.Generator) Option {
	return func(s *Store) {
		s.keys = keys
	}
}

// WithAdminUser sets the name of the principal seeded by Migrate
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

// New creates a store on db. Call Migrate once before the first Login.
func New(db DB, options ...Option) (*Store, error) {
	s := &Store{
		db:           db,
		registry:     store.NewRegistry(),
		keys:         binarykey.NewShardedGenerator(),
		adminUser:    DefaultAdminUser,
		passwordCost: bcrypt.DefaultCost,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	if s.db == nil {
		return nil, errors.New("database is required")
	}
	if s.adminUser == "" {
		return nil, errors.New("admin user is required")
	}
	return s, nil
}

// NewWithPool creates a store on a connection pool
func NewWithPool(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	return New(pool, options...)
}

// Migrate creates the schema and seeds the root node and the admin
// principal with mediarepo.DefaultAdminPassword. Existing rows are kept.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return handlePostgresError("migrate schema", err)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO media_nodes (id, path, parent_path, name, primary_type)
		VALUES ($1, '/', NULL, '', $2)
		ON CONFLICT (path) DO NOTHING`,
		uuid.New(), mediarepo.NodeTypeRoot)
	if err != nil {
		return handlePostgresError("seed root node", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(mediarepo.DefaultAdminPassword), s.passwordCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO media_principals (user_id, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		s.adminUser, string(hash))
	if err != nil {
		return handlePostgresError("seed admin principal", err)
	}
	s.logger.Debug("content store schema migrated")
	return nil
}

// Login implements mediarepo.ContentStore.
func (s *Store) Login(ctx context.Context, creds mediarepo.Credentials) (mediarepo.Session, error) {
	if err := s.checkPassword(ctx, creds.UserID, creds.Password); err != nil {
		return nil, err
	}
	if err := s.loadRegistry(ctx); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, handlePostgresError("begin session", err)
	}
	return newSession(s, creds.UserID, tx), nil
}

// Registry exposes the node type registry of the store.
func (s *Store) Registry() *store.Registry {
	return s.registry
}

func (s *Store) checkPassword(ctx context.Context, user, password string) error {
	var hash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM media_principals WHERE user_id = $1`, user).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: unknown user %s", mediarepo.ErrLoginFailed, user)
	}
	if err != nil {
		return handlePostgresError("load principal", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: invalid password for %s", mediarepo.ErrLoginFailed, user)
	}
	return nil
}

// loadRegistry merges persisted namespaces and node types into the registry
func (s *Store) loadRegistry(ctx context.Context) error {
	namespaces := make(map[string]string)
	rows, err := s.db.Query(ctx, `SELECT prefix, uri FROM media_namespaces`)
	if err != nil {
		return handlePostgresError("load namespaces", err)
	}
	for rows.Next() {
		var prefix, uri string
		if err := rows.Scan(&prefix, &uri); err != nil {
			rows.Close()
			return handlePostgresError("scan namespace", err)
		}
		namespaces[prefix] = uri
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return handlePostgresError("load namespaces", err)
	}

	var defs []mediarepo.NodeTypeDefinition
	rows, err = s.db.Query(ctx, `SELECT definition FROM media_node_types ORDER BY name`)
	if err != nil {
		return handlePostgresError("load node types", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return handlePostgresError("scan node type", err)
		}
		var def mediarepo.NodeTypeDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("decode node type: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return handlePostgresError("load node types", err)
	}

	s.registry.Load(namespaces, defs)
	return nil
}

func (s *Store) registerNamespace(ctx context.Context, prefix, uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty namespace uri", mediarepo.ErrConstraintViolation)
	}
	if _, builtin := s.registry.Namespaces()[prefix]; builtin {
		return fmt.Errorf("%w: %s", mediarepo.ErrNamespaceExists, prefix)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO media_namespaces (prefix, uri) VALUES ($1, $2)
		ON CONFLICT (prefix) DO NOTHING`, prefix, uri)
	if err != nil {
		return handlePostgresError("register namespace", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", mediarepo.ErrNamespaceExists, prefix)
	}
	return s.registry.RegisterNamespace(prefix, uri)
}

func (s *Store) registerNodeType(ctx context.Context, def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	if err := s.registry.CheckNodeType(def, allowUpdate); err != nil {
		return err
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode node type: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO media_node_types (name, definition) VALUES ($1, $2::jsonb)
		ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition, updated_at = now()`,
		def.Name, string(raw))
	if err != nil {
		return handlePostgresError("register node type", err)
	}
	return s.registry.RegisterNodeType(def, true)
}

func bcryptHash(password string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
