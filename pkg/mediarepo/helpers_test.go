package mediarepo_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	memorystore "github.com/tendant/simple-media/pkg/mediarepo/store/memory"
)

var adminCreds = mediarepo.Credentials{UserID: memorystore.DefaultAdminUser, Password: "s3cret"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStore returns a bootstrapped in-memory store whose admin password is
// adminCreds.Password.
func newStore(t *testing.T) *memorystore.Store {
	t.Helper()
	store, err := memorystore.New(memorystore.WithPasswordCost(bcrypt.MinCost), memorystore.WithLogger(discardLogger()))
	require.NoError(t, err)

	factory := mediarepo.NewSessionFactory(store, adminCreds, mediarepo.CommitAlways, discardLogger())
	initialized, err := mediarepo.NewBootstrapper(store, factory, adminCreds, discardLogger()).Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, initialized)
	return store
}

func newRepository(t *testing.T, store mediarepo.ContentStore, options ...mediarepo.Option) mediarepo.Repository {
	t.Helper()
	options = append([]mediarepo.Option{
		mediarepo.WithContentStore(store),
		mediarepo.WithCredentials(adminCreds),
		mediarepo.WithMaxFileSize(64),
		mediarepo.WithLogger(discardLogger()),
	}, options...)
	repo, err := mediarepo.New(options...)
	require.NoError(t, err)
	return repo
}

func resource(name string, mt mediarepo.MimeType, data string, tags ...string) mediarepo.Resource {
	r := mediarepo.NewResource(name, mt, mediarepo.EncodingNone, []byte(data), tags, "alice")
	// Stored dates keep millisecond precision at most
	r.CreatedDate = r.CreatedDate.Truncate(time.Millisecond)
	r.LastModifiedDate = r.CreatedDate
	return r
}
