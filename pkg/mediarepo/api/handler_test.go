package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/store/memory"
)

// setupMediaHandlerTest creates a router serving a bootstrapped in-memory repository
func setupMediaHandlerTest(t *testing.T, options ...Option) (http.Handler, mediarepo.Repository) {
	t.Helper()
	ctx := context.Background()

	store, err := memory.New(memory.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	creds := mediarepo.Credentials{UserID: "admin", Password: "secret"}
	factory := mediarepo.NewSessionFactory(store, creds, mediarepo.CommitAlways, nil)
	_, err = mediarepo.NewBootstrapper(store, factory, creds, nil).Initialize(ctx)
	require.NoError(t, err)

	repo, err := mediarepo.New(mediarepo.WithSessionFactory(factory), mediarepo.WithMaxFileSize(64))
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount(BasePath, NewMediaHandler(repo, options...).Routes())
	return router, repo
}

func uploadRequest(t *testing.T, method string, fields map[string][]string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	if payload != nil {
		fw, err := mw.CreateFormFile("file", "upload.bin")
		require.NoError(t, err)
		_, err = fw.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, BasePath+"/resources", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func catFields() map[string][]string {
	return map[string][]string{
		"resourceName":  {"cat"},
		"mimeType":      {"image/jpeg"},
		"tags":          {"pets,animals", "cute"},
		"createdByUser": {"alice"},
	}
}

func TestMediaHandler_PostResource(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPost, catFields(), []byte("jpeg bytes")))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "File uploaded successfully", w.Body.String())

	res, err := repo.Get(context.Background(), mediarepo.MimeTypeJPEG, "cat")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), res.Data)
	assert.ElementsMatch(t, []string{"pets", "animals", "cute"}, res.Tags)
	assert.Equal(t, "alice", res.CreatedByUser)
	assert.Equal(t, mediarepo.EncodingNone, res.BinaryEncoding)
}

func TestMediaHandler_PostResource_Conflict(t *testing.T) {
	router, _ := setupMediaHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPost, catFields(), []byte("one")))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPost, catFields(), []byte("two")))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMediaHandler_PutResource_Replaces(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPut, catFields(), []byte("one")))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPut, catFields(), []byte("two")))
	require.Equal(t, http.StatusCreated, w.Code)

	res, err := repo.Get(context.Background(), mediarepo.MimeTypeJPEG, "cat")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), res.Data)
}

func TestMediaHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string][]string)
		payload    []byte
		wantStatus int
	}{
		{"unknown mime type", func(f map[string][]string) { f["mimeType"] = []string{"image/x-unknown"} }, []byte("x"), http.StatusBadRequest},
		{"unknown encoding", func(f map[string][]string) { f["encoding"] = []string{"latin1"} }, []byte("x"), http.StatusBadRequest},
		{"missing resource name", func(f map[string][]string) { delete(f, "resourceName") }, []byte("x"), http.StatusBadRequest},
		{"missing creator", func(f map[string][]string) { delete(f, "createdByUser") }, []byte("x"), http.StatusBadRequest},
		{"missing file", func(map[string][]string) {}, nil, http.StatusBadRequest},
		{"payload over limit", func(map[string][]string) {}, make([]byte, 65), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupMediaHandlerTest(t)
			fields := catFields()
			tt.mutate(fields)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, http.MethodPost, fields, tt.payload))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestMediaHandler_BodyLimit(t *testing.T) {
	router, _ := setupMediaHandlerTest(t, WithMaxFileSize(0))
	// with no payload allowance only the form overhead fits
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, http.MethodPost, catFields(), make([]byte, formOverhead+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func seed(t *testing.T, repo mediarepo.Repository) {
	t.Helper()
	ctx := context.Background()
	for _, res := range []mediarepo.Resource{
		mediarepo.NewResource("cat", mediarepo.MimeTypeJPEG, mediarepo.EncodingNone, []byte("c"), []string{"pets"}, "alice"),
		mediarepo.NewResource("dog", mediarepo.MimeTypePNG, mediarepo.EncodingNone, []byte("d"), []string{"pets"}, "bob"),
		mediarepo.NewResource("cv", mediarepo.MimeTypePDF, mediarepo.EncodingNone, []byte("p"), []string{"work"}, "alice"),
	} {
		require.NoError(t, repo.Create(ctx, res))
	}
}

func getList(t *testing.T, router http.Handler, query string) (int, MediaResourceList) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, BasePath+"/resources"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp MediaResourceList
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func names(list MediaResourceList) []string {
	out := make([]string, 0, len(list.MediaResourceDTOList))
	for _, dto := range list.MediaResourceDTOList {
		out = append(out, dto.FileName)
	}
	return out
}

func TestMediaHandler_GetResources(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)
	seed(t, repo)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantNames []string
	}{
		{"all", "", http.StatusOK, []string{"cat", "dog", "cv"}},
		{"by name", "?mimeType=image/jpeg&resourceName=cat", http.StatusOK, []string{"cat"}},
		{"by mime type", "?mimeType=image/png", http.StatusOK, []string{"dog"}},
		{"by tag", "?tag=pets", http.StatusOK, []string{"cat", "dog"}},
		{"by category", "?category=image", http.StatusOK, []string{"cat", "dog"}},
		{"by category alias", "?category=document", http.StatusOK, []string{"cv"}},
		{"mime type wins over tag", "?mimeType=application/pdf&tag=pets", http.StatusOK, []string{"cv"}},
		{"missing resource", "?mimeType=image/jpeg&resourceName=bird", http.StatusNotFound, nil},
		{"unknown mime type", "?mimeType=foo/bar", http.StatusBadRequest, nil},
		{"unknown category", "?category=audio", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, list := getList(t, router, tt.query)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode == http.StatusOK {
				assert.ElementsMatch(t, tt.wantNames, names(list))
			}
		})
	}
}

func TestMediaHandler_GetResources_DTO(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)
	seed(t, repo)

	_, list := getList(t, router, "?mimeType=image/jpeg&resourceName=cat")
	require.Len(t, list.MediaResourceDTOList, 1)
	dto := list.MediaResourceDTOList[0]

	assert.Equal(t, "http://example.com/api/media/v1/resources/payload?mimeType=image%2Fjpeg&resourceName=cat", dto.PayloadURI)
	assert.Equal(t, "image/jpeg", dto.MimeType)
	assert.Equal(t, "", dto.BinaryEncoding)
	assert.Equal(t, int64(1), dto.FileSizeInBytes)
	assert.Equal(t, []string{"pets"}, dto.Tags)
	assert.Equal(t, "alice", dto.CreatedByUser)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, dto.CreatedDate)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, dto.LastModifiedDate)
}

func TestMediaHandler_GetResourcePayload(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)
	seed(t, repo)

	req := httptest.NewRequest(http.MethodGet, BasePath+"/resources/payload?mimeType=application/pdf&resourceName=cv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get("Content-Length"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	req = httptest.NewRequest(http.MethodGet, BasePath+"/resources/payload?mimeType=application/pdf&resourceName=missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMediaHandler_DeleteResource(t *testing.T) {
	router, repo := setupMediaHandlerTest(t)
	seed(t, repo)

	req := httptest.NewRequest(http.MethodDelete, BasePath+"/resources?mimeType=image/png&resourceName=dog", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	has, err := repo.Has(context.Background(), mediarepo.MimeTypePNG, "dog")
	require.NoError(t, err)
	assert.False(t, has)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, BasePath+"/resources?mimeType=image/png&resourceName=dog", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, BasePath+"/resources?mimeType=image/png", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&mediarepo.ResourceError{Op: "create", Path: "/media/x", Err: mediarepo.ErrResourceAlreadyExists}, http.StatusConflict},
		{&mediarepo.ResourceError{Op: "get", Path: "/media/x", Err: mediarepo.ErrResourceNotFound}, http.StatusNotFound},
		{&mediarepo.FileSizeError{FileName: "x", Size: 2, Limit: 1}, http.StatusRequestEntityTooLarge},
		{&mediarepo.NotSupportedError{Kind: "mime type", Value: "x", Err: mediarepo.ErrMimeTypeNotSupported}, http.StatusBadRequest},
		{&badRequestError{msg: "bad"}, http.StatusBadRequest},
		{mediarepo.ErrSessionExpired, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestMediaHandler_RequestScopedLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler, _ := setupMediaHandlerTest(t, WithLogger(log))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Mount("/", handler)

	uri := BasePath + "/resources/payload?mimeType=image/png&resourceName=ghost"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, uri, nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var rejected map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, http.MethodGet, entry["method"])
		assert.Equal(t, uri, entry["uri"])
		assert.NotEmpty(t, entry["request_id"])
		if entry["msg"] == "request rejected" {
			rejected = entry
		}
	}
	require.NotNil(t, rejected, "log output: %s", buf.String())
	assert.Equal(t, float64(http.StatusNotFound), rejected["status"])
}
