package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

var admin = mediarepo.Credentials{UserID: DefaultAdminUser, Password: mediarepo.DefaultAdminPassword}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)

	ctx := context.Background()
	sess := login(t, s)
	require.NoError(t, sess.RegisterNamespace(ctx, mediarepo.MediaNamespacePrefix, mediarepo.MediaNamespaceURI))
	for _, def := range mediarepo.MediaNodeTypes() {
		require.NoError(t, sess.RegisterNodeType(ctx, def, true))
	}
	require.NoError(t, sess.Logout(ctx))
	return s
}

func login(t *testing.T, s *Store) mediarepo.Session {
	t.Helper()
	sess, err := s.Login(context.Background(), admin)
	require.NoError(t, err)
	return sess
}

// addFile creates a media:file with a complete content node below parentPath.
func addFile(t *testing.T, sess mediarepo.Session, parentPath, name, mime string, tags []string) mediarepo.Node {
	t.Helper()
	ctx := context.Background()
	parent, err := sess.GetNode(ctx, parentPath)
	require.NoError(t, err)
	file, err := parent.AddNode(ctx, name, mediarepo.NodeTypeMedia)
	require.NoError(t, err)
	content, err := file.AddNode(ctx, mediarepo.ContentNodeName, mediarepo.NodeTypeContent)
	require.NoError(t, err)

	now := time.Now()
	for prop, v := range map[string]mediarepo.Value{
		mediarepo.PropertyData:           mediarepo.BinaryValue([]byte(name)),
		mediarepo.PropertyMimeType:       mediarepo.StringValue(mime),
		mediarepo.PropertyCreated:        mediarepo.DateValue(now),
		mediarepo.PropertyCreatedBy:      mediarepo.StringValue("alice"),
		mediarepo.PropertyLastModified:   mediarepo.DateValue(now),
		mediarepo.PropertyLastModifiedBy: mediarepo.StringValue("alice"),
		mediarepo.PropertyFileSize:       mediarepo.LongValue(int64(len(name))),
		mediarepo.PropertyTags:           mediarepo.StringsValue(tags),
	} {
		require.NoError(t, content.SetProperty(ctx, prop, v))
	}
	return file
}

// addFolders creates each path, in order, with the type listed in nodeTypes.
func addFolders(t *testing.T, sess mediarepo.Session, nodeTypes map[string]string, paths ...string) {
	t.Helper()
	ctx := context.Background()
	for _, p := range paths {
		parent, err := sess.GetNode(ctx, store.Parent(p))
		require.NoError(t, err)
		_, err = parent.AddNode(ctx, store.Name(p), nodeTypes[p])
		require.NoError(t, err)
	}
}

func TestNewStore(t *testing.T) {
	s, err := New(WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	assert.Equal(t, 1, s.NodeCount())

	_, err = New(WithAdminUser(""))
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		creds   mediarepo.Credentials
		wantErr error
	}{
		{name: "default admin", creds: admin},
		{name: "wrong password", creds: mediarepo.Credentials{UserID: DefaultAdminUser, Password: "nope"}, wantErr: mediarepo.ErrLoginFailed},
		{name: "unknown user", creds: mediarepo.Credentials{UserID: "bob", Password: "admin"}, wantErr: mediarepo.ErrLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := s.Login(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, sess.IsLive())
			assert.Equal(t, tt.creds.UserID, sess.UserID())
			assert.NotEmpty(t, sess.ID())
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := s.Login(cancelled, admin)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCustomAdminUser(t *testing.T) {
	s, err := New(WithAdminUser("root"), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)

	_, err = s.Login(context.Background(), mediarepo.Credentials{UserID: "root", Password: mediarepo.DefaultAdminPassword})
	assert.NoError(t, err)
	_, err = s.Login(context.Background(), admin)
	assert.ErrorIs(t, err, mediarepo.ErrLoginFailed)
}

func TestSessionIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	writer := login(t, s)
	reader := login(t, s)

	root, err := writer.RootNode(ctx)
	require.NoError(t, err)
	_, err = root.AddNode(ctx, "media", mediarepo.NodeTypeSection)
	require.NoError(t, err)

	exists, err := writer.NodeExists(ctx, "/media")
	require.NoError(t, err)
	assert.True(t, exists, "own changes are visible")

	exists, err = reader.NodeExists(ctx, "/media")
	require.NoError(t, err)
	assert.False(t, exists, "pending changes are private")

	require.NoError(t, writer.Save(ctx))

	exists, err = reader.NodeExists(ctx, "/media")
	require.NoError(t, err)
	assert.True(t, exists, "saved changes are visible to other sessions")
	assert.Equal(t, 2, s.NodeCount())
}

func TestRefreshDiscardsChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)

	root, err := sess.RootNode(ctx)
	require.NoError(t, err)
	_, err = root.AddNode(ctx, "media", mediarepo.NodeTypeSection)
	require.NoError(t, err)

	require.NoError(t, sess.Refresh(ctx, true))
	exists, _ := sess.NodeExists(ctx, "/media")
	assert.True(t, exists)

	require.NoError(t, sess.Refresh(ctx, false))
	exists, _ = sess.NodeExists(ctx, "/media")
	assert.False(t, exists)

	require.NoError(t, sess.Save(ctx))
	assert.Equal(t, 1, s.NodeCount())
}

func TestLogoutExpiresSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)

	root, err := sess.RootNode(ctx)
	require.NoError(t, err)
	_, err = root.AddNode(ctx, "media", mediarepo.NodeTypeSection)
	require.NoError(t, err)

	require.NoError(t, sess.Logout(ctx))
	assert.False(t, sess.IsLive())
	assert.Equal(t, 1, s.NodeCount(), "pending changes are dropped on logout")

	_, err = sess.GetNode(ctx, "/")
	assert.ErrorIs(t, err, mediarepo.ErrSessionExpired)
	assert.ErrorIs(t, sess.Save(ctx), mediarepo.ErrSessionExpired)
	_, err = root.AddNode(ctx, "x", mediarepo.NodeTypeSection)
	assert.ErrorIs(t, err, mediarepo.ErrSessionExpired)
	_, err = sess.ExecuteQuery(ctx, mediarepo.QueryAllFilePaths())
	assert.ErrorIs(t, err, mediarepo.ErrSessionExpired)
}

func TestSaveConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := login(t, s)
	second := login(t, s)

	for _, sess := range []mediarepo.Session{first, second} {
		root, err := sess.RootNode(ctx)
		require.NoError(t, err)
		_, err = root.AddNode(ctx, "media", mediarepo.NodeTypeSection)
		require.NoError(t, err)
	}

	require.NoError(t, first.Save(ctx))
	err := second.Save(ctx)
	assert.ErrorIs(t, err, mediarepo.ErrInvalidItemState)
	assert.Equal(t, 2, s.NodeCount())
}

func TestAddNodeErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	root, err := sess.RootNode(ctx)
	require.NoError(t, err)
	_, err = root.AddNode(ctx, "media", mediarepo.NodeTypeSection)
	require.NoError(t, err)

	tests := []struct {
		name     string
		nodeName string
		nodeType string
		wantErr  error
	}{
		{name: "existing child", nodeName: "media", nodeType: mediarepo.NodeTypeSection, wantErr: mediarepo.ErrItemExists},
		{name: "unknown type", nodeName: "x", nodeType: "media:missing", wantErr: mediarepo.ErrNoSuchNodeType},
		{name: "invalid name", nodeName: "a/b", nodeType: mediarepo.NodeTypeSection, wantErr: mediarepo.ErrInvalidNodeName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := root.AddNode(ctx, tt.nodeName, tt.nodeType)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNodeNavigation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{
		"/media":       mediarepo.NodeTypeSection,
		"/media/image": mediarepo.NodeTypeCategory,
	}, "/media", "/media/image")

	media, err := sess.GetNode(ctx, "/media")
	require.NoError(t, err)
	assert.Equal(t, "media", media.Name())
	assert.Equal(t, "/media", media.Path())
	assert.Equal(t, mediarepo.NodeTypeSection, media.PrimaryType())
	assert.True(t, media.IsNodeType(mediarepo.NodeTypeUnstructured))
	assert.NotEmpty(t, media.Identifier())
	assert.Same(t, sess, media.Session())

	image, err := media.GetNode(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, "/media/image", image.Path())

	has, err := media.HasNode(ctx, "image")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = media.HasNode(ctx, "video")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = media.GetNode(ctx, "video")
	assert.ErrorIs(t, err, mediarepo.ErrPathNotFound)
	_, err = sess.GetNode(ctx, "relative")
	assert.ErrorIs(t, err, mediarepo.ErrInvalidNodeName)
}

func TestRemoveSubtree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{
		"/media":            mediarepo.NodeTypeSection,
		"/media/image":      mediarepo.NodeTypeCategory,
		"/media/image/jpeg": mediarepo.NodeTypeMimeType,
	}, "/media", "/media/image", "/media/image/jpeg")
	addFile(t, sess, "/media/image/jpeg", "cat", "image/jpeg", nil)
	require.NoError(t, sess.Save(ctx))
	assert.Equal(t, 6, s.NodeCount())

	file, err := sess.GetNode(ctx, "/media/image/jpeg/cat")
	require.NoError(t, err)
	require.NoError(t, file.Remove(ctx))

	for _, p := range []string{"/media/image/jpeg/cat", "/media/image/jpeg/cat/content"} {
		exists, err := sess.NodeExists(ctx, p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}
	assert.Equal(t, 6, s.NodeCount(), "removal is pending until save")

	require.NoError(t, sess.Save(ctx))
	assert.Equal(t, 4, s.NodeCount())

	_, err = file.Property(ctx, mediarepo.PropertyName)
	assert.ErrorIs(t, err, mediarepo.ErrInvalidItemState, "stale handle")
}

func TestRemoveUnsavedNode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{"/media": mediarepo.NodeTypeSection}, "/media")

	media, err := sess.GetNode(ctx, "/media")
	require.NoError(t, err)
	require.NoError(t, media.Remove(ctx))
	require.NoError(t, sess.Save(ctx))
	assert.Equal(t, 1, s.NodeCount())
}

func TestRemoveAndRecreateInOneSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{"/media": mediarepo.NodeTypeSection}, "/media")
	addFile(t, sess, "/media", "cat", "image/jpeg", []string{"old"})
	require.NoError(t, sess.Save(ctx))

	file, err := sess.GetNode(ctx, "/media/cat")
	require.NoError(t, err)
	oldID := file.Identifier()
	require.NoError(t, file.Remove(ctx))
	recreated := addFile(t, sess, "/media", "cat", "image/jpeg", []string{"new"})
	require.NoError(t, sess.Save(ctx))

	other := login(t, s)
	node, err := other.GetNode(ctx, "/media/cat/content")
	require.NoError(t, err)
	tags, err := node.Property(ctx, mediarepo.PropertyTags)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, tags.Strings)
	assert.NotEqual(t, oldID, recreated.Identifier())
}

func TestRemoveRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root, err := login(t, s).RootNode(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, root.Remove(ctx), mediarepo.ErrConstraintViolation)
}

func TestProperties(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{"/media": mediarepo.NodeTypeSection}, "/media")
	file := addFile(t, sess, "/media", "cat", "image/jpeg", []string{"pet", "animal"})
	content, err := file.GetNode(ctx, mediarepo.ContentNodeName)
	require.NoError(t, err)

	t.Run("stored", func(t *testing.T) {
		v, err := content.Property(ctx, mediarepo.PropertyMimeType)
		require.NoError(t, err)
		mime, err := v.AsString()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mime)

		v, err = content.Property(ctx, mediarepo.PropertyData)
		require.NoError(t, err)
		data, err := v.AsBinary()
		require.NoError(t, err)
		assert.Equal(t, []byte("cat"), data)
	})

	t.Run("derived", func(t *testing.T) {
		v, err := file.Property(ctx, mediarepo.PropertyPath)
		require.NoError(t, err)
		assert.Equal(t, []string{"/media/cat"}, v.Strings)

		v, err = file.Property(ctx, mediarepo.PropertyName)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, v.Strings)

		v, err = file.Property(ctx, mediarepo.PropertyPrimaryType)
		require.NoError(t, err)
		assert.Equal(t, []string{mediarepo.NodeTypeMedia}, v.Strings)

		v, err = file.Property(ctx, mediarepo.PropertyUUID)
		require.NoError(t, err)
		assert.Equal(t, []string{file.Identifier()}, v.Strings)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := content.Property(ctx, mediarepo.PropertyEncoding)
		assert.ErrorIs(t, err, mediarepo.ErrPathNotFound)
		has, err := content.HasProperty(ctx, mediarepo.PropertyEncoding)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("type checked", func(t *testing.T) {
		err := content.SetProperty(ctx, mediarepo.PropertyFileSize, mediarepo.StringValue("3"))
		assert.ErrorIs(t, err, mediarepo.ErrConstraintViolation)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		v, err := content.Property(ctx, mediarepo.PropertyTags)
		require.NoError(t, err)
		v.Strings[0] = "changed"

		v, err = content.Property(ctx, mediarepo.PropertyTags)
		require.NoError(t, err)
		assert.Equal(t, []string{"pet", "animal"}, v.Strings)
	})
}

func TestSaveValidatesMandatoryProperties(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)
	addFolders(t, sess, map[string]string{"/media": mediarepo.NodeTypeSection}, "/media")

	media, err := sess.GetNode(ctx, "/media")
	require.NoError(t, err)
	file, err := media.AddNode(ctx, "cat", mediarepo.NodeTypeMedia)
	require.NoError(t, err)
	_, err = file.AddNode(ctx, mediarepo.ContentNodeName, mediarepo.NodeTypeContent)
	require.NoError(t, err)

	err = sess.Save(ctx)
	assert.ErrorIs(t, err, mediarepo.ErrConstraintViolation)
	assert.Equal(t, 1, s.NodeCount(), "a failed save commits nothing")
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := login(t, s)

	assert.ErrorIs(t, sess.ChangePassword(ctx, "wrong", "secret"), mediarepo.ErrLoginFailed)

	require.NoError(t, sess.ChangePassword(ctx, mediarepo.DefaultAdminPassword, "secret"))
	_, err := s.Login(ctx, admin)
	require.NoError(t, err, "password change is pending until save")

	require.NoError(t, sess.Save(ctx))
	_, err = s.Login(ctx, admin)
	assert.ErrorIs(t, err, mediarepo.ErrLoginFailed)
	_, err = s.Login(ctx, mediarepo.Credentials{UserID: DefaultAdminUser, Password: "secret"})
	assert.NoError(t, err)
}

func TestRegisterNamespaceTwice(t *testing.T) {
	s := newTestStore(t)
	err := login(t, s).RegisterNamespace(context.Background(), mediarepo.MediaNamespacePrefix, mediarepo.MediaNamespaceURI)
	assert.ErrorIs(t, err, mediarepo.ErrNamespaceExists)
	assert.True(t, s.Registry().HasNodeType(mediarepo.NodeTypeMedia))
}
