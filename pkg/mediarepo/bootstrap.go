package mediarepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Bootstrapper provisions a new content store with the media namespace,
// node types and taxonomy skeleton
type Bootstrapper struct {
	store   ContentStore
	factory *SessionFactory
	admin   Credentials
	logger  *slog.Logger
}

// NewBootstrapper creates a bootstrapper. admin holds the admin user and
// the password it should end up with; factory opens the provisioning
// sessions and is expected to log in with the same credentials.
func NewBootstrapper(store ContentStore, factory *SessionFactory, admin Credentials, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{store: store, factory: factory, admin: admin, logger: logger}
}

// Initialize bootstraps the store when it still accepts the default admin
// password and returns whether it did. A store that rejects the default
// password is treated as already provisioned. Not safe for concurrent use
// with itself or with regular traffic.
func (b *Bootstrapper) Initialize(ctx context.Context) (bool, error) {
	required, err := b.requiresSetup(ctx)
	if err != nil {
		return false, err
	}
	if !required {
		b.logger.Info("mounting existing content store, skipping initialization")
		return false, nil
	}

	b.logger.Info("initializing new content store")
	if err := b.rotateAdminPassword(ctx); err != nil {
		return false, b.fail(err)
	}
	steps := []struct {
		name string
		fn   func(context.Context, Session) error
	}{
		{"register namespace", b.registerNamespace},
		{"register node types", b.registerNodeTypes},
		{"create taxonomy", b.createSkeleton},
	}
	for _, step := range steps {
		_, err := WithScope(ctx, b.factory, func(s Session) (struct{}, error) {
			return struct{}{}, step.fn(ctx, s)
		})
		if err != nil {
			return false, b.fail(fmt.Errorf("%s: %w", step.name, err))
		}
	}
	b.logger.Debug("finished initializing content store")
	return true, nil
}

func (b *Bootstrapper) fail(err error) error {
	b.logger.Error("content store initialization failed; check namespaces, node type names and property names first, the store is unusable",
		"error", err)
	return err
}

func (b *Bootstrapper) defaultCredentials() Credentials {
	return Credentials{UserID: b.admin.UserID, Password: DefaultAdminPassword}
}

func (b *Bootstrapper) requiresSetup(ctx context.Context) (bool, error) {
	session, err := b.store.Login(ctx, b.defaultCredentials())
	if errors.Is(err, ErrLoginFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe default credentials: %w", err)
	}
	if err := session.Logout(ctx); err != nil {
		b.logger.Warn("failed to logout probe session", "error", err)
	}
	return true, nil
}

func (b *Bootstrapper) rotateAdminPassword(ctx context.Context) error {
	session, err := b.store.Login(ctx, b.defaultCredentials())
	if errors.Is(err, ErrLoginFailed) {
		b.logger.Info("admin credentials already customized, skipping password rotation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("login with default credentials: %w", err)
	}
	defer func() {
		if err := session.Logout(ctx); err != nil {
			b.logger.Warn("failed to logout session", "error", err)
		}
	}()

	if b.admin.Password == DefaultAdminPassword {
		b.logger.Warn("admin password is the default one, not rotating")
		return nil
	}
	if err := session.ChangePassword(ctx, DefaultAdminPassword, b.admin.Password); err != nil {
		return fmt.Errorf("change admin password: %w", err)
	}
	if err := session.Save(ctx); err != nil {
		return fmt.Errorf("save admin password: %w", err)
	}
	b.logger.Warn("new content store created, admin credentials set", "user", b.admin.UserID)
	return nil
}

func (b *Bootstrapper) registerNamespace(ctx context.Context, s Session) error {
	err := s.RegisterNamespace(ctx, MediaNamespacePrefix, MediaNamespaceURI)
	if errors.Is(err, ErrNamespaceExists) {
		b.logger.Info("namespace already exists", "prefix", MediaNamespacePrefix)
		return nil
	}
	return err
}

func (b *Bootstrapper) registerNodeTypes(ctx context.Context, s Session) error {
	for _, def := range MediaNodeTypes() {
		if err := s.RegisterNodeType(ctx, def, true); err != nil {
			return fmt.Errorf("%s: %w", def.Name, err)
		}
		b.logger.Debug("registered node type", "name", def.Name)
	}
	return nil
}

func (b *Bootstrapper) createSkeleton(ctx context.Context, s Session) error {
	if _, err := ensurePath(ctx, s, MediaRootPath, NodeTypeSection); err != nil {
		return err
	}
	for _, c := range Categories() {
		if _, err := ensurePath(ctx, s, CategoryPath(c.NodeName()), NodeTypeCategory); err != nil {
			return err
		}
	}
	for _, mt := range MimeTypes() {
		if _, err := ensurePath(ctx, s, TypePathForMimeType(mt), NodeTypeMimeType); err != nil {
			return err
		}
	}
	return nil
}

// ensurePath returns the node at path, creating it and any missing
// ancestors with nodeType.
func ensurePath(ctx context.Context, s Session, path, nodeType string) (Node, error) {
	node, err := s.RootNode(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		child, err := node.GetNode(ctx, name)
		if errors.Is(err, ErrPathNotFound) {
			child, err = node.AddNode(ctx, name, nodeType)
		}
		if err != nil {
			return nil, fmt.Errorf("ensure %s: %w", path, err)
		}
		node = child
	}
	return node, nil
}
