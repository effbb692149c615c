package mediarepo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ExitPolicy decides what happens to pending session changes when a scope
// is closed
type ExitPolicy int

const (
	// CommitAlways saves pending changes whether or not the operation failed
	CommitAlways ExitPolicy = iota
	// CommitOnSuccess saves on success and discards pending changes on failure
	CommitOnSuccess
)

func (p ExitPolicy) String() string {
	switch p {
	case CommitAlways:
		return "commit_always"
	case CommitOnSuccess:
		return "commit_on_success"
	default:
		return fmt.Sprintf("ExitPolicy(%d)", int(p))
	}
}

// ParseExitPolicy accepts "commit_always" and "commit_on_success".
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "commit_always":
		return CommitAlways, nil
	case "commit_on_success":
		return CommitOnSuccess, nil
	}
	return CommitAlways, fmt.Errorf("unknown exit policy %q", s)
}

// SessionFactory opens scopes against a content store with fixed credentials
type SessionFactory struct {
	store  ContentStore
	creds  Credentials
	policy ExitPolicy
	logger *slog.Logger
}

// NewSessionFactory returns a factory logging in to store as creds. A nil
// logger uses slog.Default.
func NewSessionFactory(store ContentStore, creds Credentials, policy ExitPolicy, logger *slog.Logger) *SessionFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionFactory{store: store, creds: creds, policy: policy, logger: logger}
}

// Policy returns the exit policy applied to scopes of this factory.
func (f *SessionFactory) Policy() ExitPolicy {
	return f.policy
}

// Open logs in and returns a scope owning the new session.
func (f *SessionFactory) Open(ctx context.Context) (*Scope, error) {
	session, err := f.store.Login(ctx, f.creds)
	if err != nil {
		f.logger.Error("failed to open session", "user", f.creds.UserID, "error", err)
		return nil, fmt.Errorf("open session: %w", err)
	}
	f.logger.Debug("session opened", "session_id", session.ID(), "user", f.creds.UserID)
	return &Scope{session: session, policy: f.policy, logger: f.logger}, nil
}

// Scope exclusively owns one session for the duration of one operation
type Scope struct {
	session Session
	policy  ExitPolicy
	logger  *slog.Logger
	closed  bool
}

// Session returns the session owned by the scope.
func (s *Scope) Session() Session {
	return s.session
}

// Close ends the scope. Pending changes are saved or discarded according
// to the exit policy, then the session is logged out. opErr is the outcome
// of the enclosing operation; it takes precedence over errors raised while
// closing. Close is a no-op on an already closed scope.
func (s *Scope) Close(ctx context.Context, opErr error) error {
	if s.closed {
		return opErr
	}
	s.closed = true

	var closeErr error
	if opErr != nil && s.policy == CommitOnSuccess {
		if err := s.session.Refresh(ctx, false); err != nil {
			s.logger.Error("failed to discard session changes", "session_id", s.session.ID(), "error", err)
			closeErr = err
		}
	} else if s.session.IsLive() {
		if err := s.session.Save(ctx); err != nil {
			s.logger.Error("failed to save session", "session_id", s.session.ID(), "error", err)
			closeErr = err
		}
	}

	if err := s.session.Logout(ctx); err != nil {
		s.logger.Warn("failed to logout session", "session_id", s.session.ID(), "error", err)
		if closeErr == nil {
			closeErr = err
		}
	}
	s.logger.Debug("session closed", "session_id", s.session.ID(), "policy", s.policy.String())

	if opErr != nil {
		return opErr
	}
	return closeErr
}

// WithScope runs fn inside a fresh scope of f and closes it afterwards.
func WithScope[T any](ctx context.Context, f *SessionFactory, fn func(Session) (T, error)) (result T, err error) {
	scope, err := f.Open(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		err = scope.Close(ctx, err)
	}()
	return fn(scope.Session())
}
