package mediarepo

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Login(ctx context.Context, creds Credentials) (Session, error) {
	args := m.Called(ctx, creds)
	if s := args.Get(0); s != nil {
		return s.(Session), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) ID() string     { return "session-1" }
func (m *mockSession) UserID() string { return "admin" }

func (m *mockSession) IsLive() bool {
	return m.Called().Bool(0)
}

func (m *mockSession) Save(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) Refresh(ctx context.Context, keepChanges bool) error {
	return m.Called(ctx, keepChanges).Error(0)
}

func (m *mockSession) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) RootNode(ctx context.Context) (Node, error) {
	return m.GetNode(ctx, "/")
}

func (m *mockSession) GetNode(ctx context.Context, path string) (Node, error) {
	args := m.Called(ctx, path)
	if n := args.Get(0); n != nil {
		return n.(Node), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSession) NodeExists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *mockSession) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return m.Called(ctx, oldPassword, newPassword).Error(0)
}

func (m *mockSession) RegisterNamespace(ctx context.Context, prefix, uri string) error {
	return m.Called(ctx, prefix, uri).Error(0)
}

func (m *mockSession) RegisterNodeType(ctx context.Context, def NodeTypeDefinition, allowUpdate bool) error {
	return m.Called(ctx, def, allowUpdate).Error(0)
}

func (m *mockSession) ExecuteQuery(ctx context.Context, q Query) (*QueryResult, error) {
	args := m.Called(ctx, q)
	if r := args.Get(0); r != nil {
		return r.(*QueryResult), args.Error(1)
	}
	return nil, args.Error(1)
}
