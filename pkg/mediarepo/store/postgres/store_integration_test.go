//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	memoryblob "github.com/tendant/simple-media/pkg/mediarepo/blob/memory"
	pgstore "github.com/tendant/simple-media/pkg/mediarepo/store/postgres"
)

var adminCreds = mediarepo.Credentials{UserID: pgstore.DefaultAdminUser, Password: "s3cret"}

// newStore migrates a fresh schema on TEST_DATABASE_URL and bootstraps it.
func newStore(t *testing.T, options ...pgstore.Option) *pgstore.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("media_test_%d", time.Now().UnixNano())

	admin, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize()); err != nil {
		admin.Close()
		t.Skipf("postgres not available: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		admin.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	options = append([]pgstore.Option{pgstore.WithPasswordCost(bcrypt.MinCost), pgstore.WithLogger(logger)}, options...)
	s, err := pgstore.NewWithPool(pool, options...)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate is idempotent")

	factory := mediarepo.NewSessionFactory(s, adminCreds, mediarepo.CommitAlways, logger)
	initialized, err := mediarepo.NewBootstrapper(s, factory, adminCreds, logger).Initialize(ctx)
	require.NoError(t, err)
	require.True(t, initialized)
	return s
}

func newRepository(t *testing.T, s *pgstore.Store, policy mediarepo.ExitPolicy) mediarepo.Repository {
	t.Helper()
	repo, err := mediarepo.New(
		mediarepo.WithContentStore(s),
		mediarepo.WithCredentials(adminCreds),
		mediarepo.WithExitPolicy(policy),
		mediarepo.WithMaxFileSize(64),
		mediarepo.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return repo
}

func TestPostgresRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t, newStore(t), mediarepo.CommitAlways)

	cat := mediarepo.NewResource("cat", mediarepo.MimeTypeJPEG, mediarepo.EncodingNone, []byte("meow"), []string{"pet"}, "alice")
	require.NoError(t, repo.Create(ctx, cat))
	assert.ErrorIs(t, repo.Create(ctx, cat), mediarepo.ErrResourceAlreadyExists)

	got, err := repo.Get(ctx, mediarepo.MimeTypeJPEG, "cat")
	require.NoError(t, err)
	assert.True(t, cat.Equal(got), "got %s", got)

	require.NoError(t, repo.Create(ctx, mediarepo.NewResource("report", mediarepo.MimeTypePDF, mediarepo.EncodingNone, []byte("pdf"), []string{"pet", "work"}, "bob")))

	paths, err := repo.ListAllFilePaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/doc/pdf/report", "/media/image/jpeg/cat"}, paths)

	paths, err = repo.ListFilePathsByCategory(ctx, mediarepo.CategoryImage)
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/image/jpeg/cat"}, paths)

	paths, err = repo.ListFilePathsByMimeType(ctx, mediarepo.MimeTypePDF)
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/doc/pdf/report"}, paths)

	byTag, err := repo.GetByTag(ctx, "pet")
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	require.NoError(t, repo.Delete(ctx, mediarepo.MimeTypeJPEG, "cat"))
	assert.ErrorIs(t, repo.Delete(ctx, mediarepo.MimeTypeJPEG, "cat"), mediarepo.ErrResourceNotFound)
}

func TestPostgresBinaryOffload(t *testing.T) {
	ctx := context.Background()
	blobs := memoryblob.New()
	repo := newRepository(t, newStore(t, pgstore.WithBinaryStore(blobs)), mediarepo.CommitOnSuccess)

	require.NoError(t, repo.Create(ctx, mediarepo.NewResource("cat", mediarepo.MimeTypeJPEG, mediarepo.EncodingNone, []byte("v1"), nil, "alice")))
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, repo.CreateOrReplace(ctx, mediarepo.NewResource("cat", mediarepo.MimeTypeJPEG, mediarepo.EncodingNone, []byte("v2"), nil, "alice")))
	assert.Equal(t, 1, blobs.Len(), "the replaced payload is deleted after commit")

	got, err := repo.Get(ctx, mediarepo.MimeTypeJPEG, "cat")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Data)

	// A rolled back write leaves no object behind
	err = repo.Create(ctx, mediarepo.NewResource("cat", mediarepo.MimeTypeJPEG, mediarepo.EncodingNone, []byte("v3"), nil, "alice"))
	assert.ErrorIs(t, err, mediarepo.ErrResourceAlreadyExists)
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, repo.Delete(ctx, mediarepo.MimeTypeJPEG, "cat"))
	assert.Equal(t, 0, blobs.Len())
}

func TestPostgresSessionIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	writer, err := s.Login(ctx, adminCreds)
	require.NoError(t, err)
	defer writer.Logout(ctx)
	reader, err := s.Login(ctx, adminCreds)
	require.NoError(t, err)
	defer reader.Logout(ctx)

	parent, err := writer.GetNode(ctx, mediarepo.TypePathForMimeType(mediarepo.MimeTypePNG))
	require.NoError(t, err)
	_, err = parent.AddNode(ctx, "logo", mediarepo.NodeTypeMedia)
	require.NoError(t, err)

	exists, err := reader.NodeExists(ctx, "/media/image/png/logo")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = parent.AddNode(ctx, "logo", mediarepo.NodeTypeMedia)
	assert.ErrorIs(t, err, mediarepo.ErrItemExists)

	// The transaction is still usable after a duplicate insert
	require.NoError(t, writer.Save(ctx))
	require.NoError(t, reader.Refresh(ctx, false))
	exists, err = reader.NodeExists(ctx, "/media/image/png/logo")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresLogin(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Login(ctx, mediarepo.Credentials{UserID: adminCreds.UserID, Password: mediarepo.DefaultAdminPassword})
	assert.ErrorIs(t, err, mediarepo.ErrLoginFailed)
	_, err = s.Login(ctx, mediarepo.Credentials{UserID: "nobody", Password: "x"})
	assert.ErrorIs(t, err, mediarepo.ErrLoginFailed)
}
