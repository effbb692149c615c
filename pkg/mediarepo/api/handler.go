package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/internal/logger"
	"github.com/tendant/simple-media/pkg/mediarepo"
)

// BasePath is where MediaHandler.Routes is expected to be mounted
const BasePath = "/api/media/v1"

const (
	defaultMaxMemory = 32 << 20
	// multipart framing and the text fields on top of the payload
	formOverhead = 1 << 20
)

// MediaHandler serves resources of a media repository over HTTP
type MediaHandler struct {
	repo        mediarepo.Repository
	logger      *slog.Logger
	maxBodySize int64
}

// Option configures a MediaHandler
type Option func(*MediaHandler)

// WithLogger sets the logger of the handler
func WithLogger(logger *slog.Logger) Option {
	return func(h *MediaHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxFileSize rejects upload bodies that cannot fit a payload of n bytes
// before they are read completely
func WithMaxFileSize(n int64) Option {
	return func(h *MediaHandler) {
		h.maxBodySize = n + formOverhead
	}
}

// NewMediaHandler creates a handler for repo
func NewMediaHandler(repo mediarepo.Repository, options ...Option) *MediaHandler {
	h := &MediaHandler{
		repo:        repo,
		logger:      slog.Default(),
		maxBodySize: mediarepo.DefaultMaxFileSize + formOverhead,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Routes returns the router for resource endpoints
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)
	r.Get("/resources", h.GetResources)
	r.Post("/resources", h.PostResource)
	r.Put("/resources", h.PutResource)
	r.Delete("/resources", h.DeleteResource)
	r.Get("/resources/payload", h.GetResourcePayload)
	return r
}

// requestLogger puts a logger carrying the request method, uri and request id
// into the request context
func (h *MediaHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := h.logger.With("method", r.Method, "uri", r.RequestURI)
		if id := middleware.GetReqID(r.Context()); id != "" {
			l = l.With("request_id", id)
		}
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
	})
}

// MediaResourceDTO describes a resource without its payload
type MediaResourceDTO struct {
	PayloadURI         string   `json:"payloadURI"`
	FileName           string   `json:"fileName"`
	MimeType           string   `json:"mimeType"`
	BinaryEncoding     string   `json:"binaryEncoding"`
	FileSizeInBytes    int64    `json:"fileSizeInBytes"`
	Tags               []string `json:"tags"`
	CreatedByUser      string   `json:"createdByUser"`
	CreatedDate        string   `json:"createdDate"`
	LastModifiedByUser string   `json:"lastModifiedByUser"`
	LastModifiedDate   string   `json:"lastModifiedDate"`
}

// MediaResourceList is the response body of GET /resources
type MediaResourceList struct {
	MediaResourceDTOList []MediaResourceDTO `json:"mediaResourceDTOList"`
}

// NewMediaResourceDTO maps a resource and the URI its payload is served at
func NewMediaResourceDTO(res mediarepo.Resource, payloadURI string) MediaResourceDTO {
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	return MediaResourceDTO{
		PayloadURI:         payloadURI,
		FileName:           res.FileName,
		MimeType:           res.MimeType.String(),
		BinaryEncoding:     res.BinaryEncoding.String(),
		FileSizeInBytes:    res.FileSizeInBytes,
		Tags:               tags,
		CreatedByUser:      res.CreatedByUser,
		CreatedDate:        mediarepo.FormatTimestamp(res.CreatedDate),
		LastModifiedByUser: res.LastModifiedByUser,
		LastModifiedDate:   mediarepo.FormatTimestamp(res.LastModifiedDate),
	}
}

// GetResources lists resources. Filters are tried in the order
// mimeType+resourceName, mimeType, tag, category; without any all
// resources are returned.
func (h *MediaHandler) GetResources(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Debug("GET request received")
	q := r.URL.Query()
	mimeType, resourceName := q.Get("mimeType"), q.Get("resourceName")
	tag, category := q.Get("tag"), q.Get("category")

	var (
		resources []mediarepo.Resource
		err       error
	)
	switch {
	case mimeType != "" && resourceName != "":
		var mt mediarepo.MimeType
		if mt, err = mediarepo.ParseMimeType(mimeType); err == nil {
			var res mediarepo.Resource
			if res, err = h.repo.Get(r.Context(), mt, resourceName); err == nil {
				resources = []mediarepo.Resource{res}
			}
		}
	case mimeType != "":
		var mt mediarepo.MimeType
		if mt, err = mediarepo.ParseMimeType(mimeType); err == nil {
			resources, err = h.repo.GetByMimeType(r.Context(), mt)
		}
	case tag != "":
		resources, err = h.repo.GetByTag(r.Context(), tag)
	case category != "":
		var c mediarepo.CategoryType
		if c, err = mediarepo.ParseCategoryType(category); err == nil {
			resources, err = h.repo.GetByCategory(r.Context(), c)
		}
	default:
		resources, err = h.repo.GetAll(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := MediaResourceList{MediaResourceDTOList: make([]MediaResourceDTO, 0, len(resources))}
	for _, res := range resources {
		resp.MediaResourceDTOList = append(resp.MediaResourceDTOList, NewMediaResourceDTO(res, payloadURI(r, res)))
	}
	logger.FromContext(r.Context()).Debug("GET request returned HTTP 200", "count", len(resources))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// PostResource creates a resource from a multipart upload
func (h *MediaHandler) PostResource(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.repo.Create)
}

// PutResource creates or replaces a resource from a multipart upload
func (h *MediaHandler) PutResource(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.repo.CreateOrReplace)
}

func (h *MediaHandler) upload(w http.ResponseWriter, r *http.Request, store func(context.Context, mediarepo.Resource) error) {
	log := logger.FromContext(r.Context())
	log.Debug(r.Method + " request received")
	res, err := h.parseUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := store(r.Context(), res); err != nil {
		log.Error("error uploading file", "file_name", res.FileName, "error", err)
		h.writeError(w, r, err)
		return
	}
	log.Debug(r.Method+" request returned HTTP 201", "file_name", res.FileName)
	render.Status(r, http.StatusCreated)
	render.PlainText(w, r, "File uploaded successfully")
}

// parseUpload reads the form fields file, resourceName, mimeType, encoding,
// tags and createdByUser
func (h *MediaHandler) parseUpload(w http.ResponseWriter, r *http.Request) (mediarepo.Resource, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return mediarepo.Resource{}, &mediarepo.FileSizeError{
				FileName: "upload",
				Size:     h.maxBodySize,
				Limit:    h.maxBodySize - formOverhead,
			}
		}
		return mediarepo.Resource{}, &badRequestError{msg: fmt.Sprintf("invalid multipart form: %v", err)}
	}

	resourceName := strings.TrimSpace(r.FormValue("resourceName"))
	if resourceName == "" {
		return mediarepo.Resource{}, &badRequestError{msg: "resourceName is required"}
	}
	createdBy := strings.TrimSpace(r.FormValue("createdByUser"))
	if createdBy == "" {
		return mediarepo.Resource{}, &badRequestError{msg: "createdByUser is required"}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return mediarepo.Resource{}, &badRequestError{msg: fmt.Sprintf("file is required: %v", err)}
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return mediarepo.Resource{}, fmt.Errorf("read upload: %w", err)
	}

	return mediarepo.ParseResource(
		resourceName,
		r.FormValue("mimeType"),
		r.FormValue("encoding"),
		data,
		splitTags(r.MultipartForm.Value["tags"]),
		createdBy,
	)
}

// splitTags accepts repeated tags fields as well as comma separated lists
func splitTags(values []string) []string {
	tags := []string{}
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// DeleteResource removes the resource named by mimeType and resourceName
func (h *MediaHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	mt, name, err := resourceKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.repo.Delete(r.Context(), mt, name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetResourcePayload streams the payload of a resource
func (h *MediaHandler) GetResourcePayload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	log.Debug("GET request received")
	mt, name, err := resourceKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.repo.Get(r.Context(), mt, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.MimeType.String())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		log.Warn("failed to write payload", "file_name", name, "error", err)
		return
	}
	log.Debug("GET request returned HTTP 200")
}

func resourceKey(r *http.Request) (mediarepo.MimeType, string, error) {
	q := r.URL.Query()
	name := q.Get("resourceName")
	if name == "" {
		return mediarepo.MimeType{}, "", &badRequestError{msg: "resourceName is required"}
	}
	mt, err := mediarepo.ParseMimeType(q.Get("mimeType"))
	if err != nil {
		return mediarepo.MimeType{}, "", err
	}
	return mt, name, nil
}

// payloadURI is the absolute URL the payload of res is served at
func payloadURI(r *http.Request, res mediarepo.Resource) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	params := url.Values{}
	params.Set("resourceName", res.FileName)
	params.Set("mimeType", res.MimeType.String())
	return fmt.Sprintf("%s://%s%s/resources/payload?%s", scheme, r.Host, BasePath, params.Encode())
}
