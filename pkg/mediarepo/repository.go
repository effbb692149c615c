package mediarepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMaxFileSize is the payload limit used when none is configured (100 MB)
const DefaultMaxFileSize int64 = 100_000_000

// Repository is the public read/write API over media resources. Every call
// runs in its own session scope.
type Repository interface {
	// Has reports whether a resource exists
	Has(ctx context.Context, mimeType MimeType, fileName string) (bool, error)

	// Get returns a resource or ErrResourceNotFound
	Get(ctx context.Context, mimeType MimeType, fileName string) (Resource, error)

	// Create stores a new resource. It fails with ErrResourceAlreadyExists
	// when a resource with the same mime type and name exists.
	Create(ctx context.Context, r Resource) error

	// CreateOrReplace stores r, replacing any existing resource of the
	// same mime type and name
	CreateOrReplace(ctx context.Context, r Resource) error

	// Delete removes a resource or fails with ErrResourceNotFound
	Delete(ctx context.Context, mimeType MimeType, fileName string) error

	ListAllFilePaths(ctx context.Context) ([]string, error)
	GetAll(ctx context.Context) ([]Resource, error)
	GetByMimeType(ctx context.Context, mimeType MimeType) ([]Resource, error)
	ListFilePathsByMimeType(ctx context.Context, mimeType MimeType) ([]string, error)
	GetByCategory(ctx context.Context, category CategoryType) ([]Resource, error)
	ListFilePathsByCategory(ctx context.Context, category CategoryType) ([]string, error)
	GetByTag(ctx context.Context, tag string) ([]Resource, error)
	ListFilePathsByTag(ctx context.Context, tag string) ([]string, error)
}

// repository implements the Repository interface
type repository struct {
	store       ContentStore
	creds       Credentials
	policy      ExitPolicy
	maxFileSize int64
	logger      *slog.Logger

	factory     *SessionFactory
	mapper      *Mapper
	executor    *QueryExecutor
	interpreter ResultInterpreter
}

// Option represents a functional option for configuring the repository
type Option func(*repository)

// WithContentStore sets the content store sessions are opened against
func WithContentStore(store ContentStore) Option {
	return func(r *repository) {
		r.store = store
	}
}

// WithCredentials sets the credentials sessions are opened with
func WithCredentials(creds Credentials) Option {
	return func(r *repository) {
		r.creds = creds
	}
}

// WithExitPolicy sets how scopes treat pending changes of failed operations
func WithExitPolicy(policy ExitPolicy) Option {
	return func(r *repository) {
		r.policy = policy
	}
}

// WithMaxFileSize sets the payload limit in bytes
func WithMaxFileSize(n int64) Option {
	return func(r *repository) {
		r.maxFileSize = n
	}
}

// WithLogger sets the logger of the repository and its components
func WithLogger(logger *slog.Logger) Option {
	return func(r *repository) {
		r.logger = logger
	}
}

// WithSessionFactory uses an existing factory instead of building one from
// the store, credentials and exit policy
func WithSessionFactory(factory *SessionFactory) Option {
	return func(r *repository) {
		r.factory = factory
	}
}

// New creates a new repository with the given options
func New(options ...Option) (Repository, error) {
	r := &repository{
		policy:      CommitAlways,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, option := range options {
		option(r)
	}

	if r.factory == nil {
		if r.store == nil {
			return nil, fmt.Errorf("content store is required")
		}
		if r.creds.UserID == "" {
			return nil, fmt.Errorf("credentials are required")
		}
		r.factory = NewSessionFactory(r.store, r.creds, r.policy, r.logger)
	}
	if r.maxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive, got %d", r.maxFileSize)
	}

	r.mapper = NewMapper(r.maxFileSize, r.logger)
	r.executor = NewQueryExecutor(r.logger)
	return r, nil
}

func (r *repository) Has(ctx context.Context, mimeType MimeType, fileName string) (bool, error) {
	path := FileNodePathForMimeType(mimeType, fileName)
	return WithScope(ctx, r.factory, func(s Session) (bool, error) {
		_, err := s.GetNode(ctx, path)
		if errors.Is(err, ErrPathNotFound) {
			r.logger.Debug("resource does not exist", "path", path)
			return false, nil
		}
		if err != nil {
			r.logger.Error("failed to check resource", "path", path, "error", err)
			return false, err
		}
		return true, nil
	})
}

func (r *repository) Get(ctx context.Context, mimeType MimeType, fileName string) (Resource, error) {
	path := FileNodePathForMimeType(mimeType, fileName)
	return WithScope(ctx, r.factory, func(s Session) (Resource, error) {
		node, err := s.GetNode(ctx, path)
		if errors.Is(err, ErrPathNotFound) {
			r.logger.Info("resource not found", "path", path)
			return Resource{}, notFound("get", path)
		}
		if err != nil {
			r.logger.Error("failed to get resource", "path", path, "error", err)
			return Resource{}, err
		}
		return r.mapper.ToResource(ctx, node)
	})
}

func (r *repository) Create(ctx context.Context, res Resource) error {
	r.logger.Debug("saving resource", "resource", res.String())
	_, err := WithScope(ctx, r.factory, func(s Session) (struct{}, error) {
		return struct{}{}, r.create(ctx, s, res)
	})
	return err
}

func (r *repository) create(ctx context.Context, s Session, res Resource) error {
	typePath := TypePathForMimeType(res.MimeType)
	typeNode, err := s.GetNode(ctx, typePath)
	if errors.Is(err, ErrPathNotFound) {
		r.logger.Error("no mime type node found", "path", typePath, "file_name", res.FileName)
		return notFound("create", typePath)
	}
	if err != nil {
		r.logger.Error("failed to create resource", "file_name", res.FileName, "error", err)
		return err
	}

	exists, err := typeNode.HasNode(ctx, res.FileName)
	if err != nil {
		r.logger.Error("failed to create resource", "file_name", res.FileName, "error", err)
		return err
	}
	if exists {
		path := FileNodePathForResource(res)
		r.logger.Error("resource already exists", "path", path)
		return &ResourceError{Op: "create", Path: path, Err: ErrResourceAlreadyExists}
	}

	_, err = r.mapper.FromResource(ctx, res, typeNode)
	return err
}

// CreateOrReplace removes and recreates the resource in a single scope, so
// the replacement is committed together with the removal.
func (r *repository) CreateOrReplace(ctx context.Context, res Resource) error {
	path := FileNodePathForResource(res)
	_, err := WithScope(ctx, r.factory, func(s Session) (struct{}, error) {
		node, err := s.GetNode(ctx, path)
		switch {
		case errors.Is(err, ErrPathNotFound):
		case err != nil:
			r.logger.Error("failed to replace resource", "path", path, "error", err)
			return struct{}{}, err
		default:
			if err := node.Remove(ctx); err != nil {
				r.logger.Error("failed to remove resource", "path", path, "error", err)
				return struct{}{}, err
			}
		}
		return struct{}{}, r.create(ctx, s, res)
	})
	return err
}

func (r *repository) Delete(ctx context.Context, mimeType MimeType, fileName string) error {
	path := FileNodePathForMimeType(mimeType, fileName)
	r.logger.Debug("deleting resource", "path", path)
	_, err := WithScope(ctx, r.factory, func(s Session) (struct{}, error) {
		exists, err := s.NodeExists(ctx, path)
		if err != nil {
			r.logger.Error("failed to delete resource", "path", path, "error", err)
			return struct{}{}, err
		}
		if !exists {
			r.logger.Error("cannot delete missing resource", "path", path)
			return struct{}{}, notFound("delete", path)
		}
		node, err := s.GetNode(ctx, path)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, node.Remove(ctx)
	})
	return err
}

func (r *repository) ListAllFilePaths(ctx context.Context) ([]string, error) {
	return r.paths(ctx, QueryAllFilePaths())
}

func (r *repository) GetAll(ctx context.Context) ([]Resource, error) {
	return r.resources(ctx, QueryAllResources())
}

func (r *repository) GetByMimeType(ctx context.Context, mimeType MimeType) ([]Resource, error) {
	return r.resources(ctx, QueryByMimeType(mimeType, ProjectNodes))
}

func (r *repository) ListFilePathsByMimeType(ctx context.Context, mimeType MimeType) ([]string, error) {
	return r.paths(ctx, QueryByMimeType(mimeType, ProjectPaths))
}

func (r *repository) GetByCategory(ctx context.Context, category CategoryType) ([]Resource, error) {
	return r.resources(ctx, QueryByCategory(category, ProjectNodes))
}

func (r *repository) ListFilePathsByCategory(ctx context.Context, category CategoryType) ([]string, error) {
	return r.paths(ctx, QueryByCategory(category, ProjectPaths))
}

func (r *repository) GetByTag(ctx context.Context, tag string) ([]Resource, error) {
	return r.resources(ctx, QueryByTag(tag, ProjectNodes))
}

func (r *repository) ListFilePathsByTag(ctx context.Context, tag string) ([]string, error) {
	return r.paths(ctx, QueryByTag(tag, ProjectPaths))
}

func (r *repository) paths(ctx context.Context, q Query) ([]string, error) {
	return WithScope(ctx, r.factory, func(s Session) ([]string, error) {
		result, err := r.executor.Execute(ctx, s, q)
		if err != nil {
			return nil, err
		}
		return r.interpreter.ExtractFilePaths(result), nil
	})
}

func (r *repository) resources(ctx context.Context, q Query) ([]Resource, error) {
	return WithScope(ctx, r.factory, func(s Session) ([]Resource, error) {
		result, err := r.executor.Execute(ctx, s, q)
		if err != nil {
			return nil, err
		}
		nodes := r.interpreter.NodesFromResult(result)
		resources := make([]Resource, 0, len(nodes))
		for _, node := range nodes {
			res, err := r.mapper.ToResource(ctx, node)
			if err != nil {
				return nil, err
			}
			resources = append(resources, res)
		}
		return resources, nil
	})
}
