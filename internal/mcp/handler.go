package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tendant/simple-media/pkg/mediarepo"
)

// Handler exposes read access to a media repository as MCP tools
type Handler struct {
	repo   mediarepo.Repository
	logger *slog.Logger
}

// NewHandler creates a new instance of Handler
func NewHandler(repo mediarepo.Repository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterTools registers the media tools with the MCP server
func (h *Handler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.Tool{
		Name:        "list_media_paths",
		Description: "Lists repository paths of media resources. Filter by at most one of mimeType, category or tag.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"mimeType": map[string]any{"type": "string", "description": "Mime type such as image/jpeg"},
				"category": map[string]any{"type": "string", "description": "One of image, doc, video, other"},
				"tag":      map[string]any{"type": "string", "description": "Tag the resources carry"},
			},
		},
	}, h.handleListPaths)

	s.AddTool(mcp.Tool{
		Name:        "get_media_info",
		Description: "Returns the metadata of one media resource without its payload",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"mimeType":     map[string]any{"type": "string", "description": "Mime type of the resource"},
				"resourceName": map[string]any{"type": "string", "description": "File name of the resource"},
			},
			Required: []string{"mimeType", "resourceName"},
		},
	}, h.handleGetInfo)

	s.AddTool(mcp.Tool{
		Name:        "has_media",
		Description: "Reports whether a media resource exists",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"mimeType":     map[string]any{"type": "string", "description": "Mime type of the resource"},
				"resourceName": map[string]any{"type": "string", "description": "File name of the resource"},
			},
			Required: []string{"mimeType", "resourceName"},
		},
	}, h.handleHas)
}

// MediaInfo is the metadata returned by get_media_info
type MediaInfo struct {
	Path               string   `json:"path"`
	FileName           string   `json:"file_name"`
	MimeType           string   `json:"mime_type"`
	Category           string   `json:"category"`
	BinaryEncoding     string   `json:"binary_encoding"`
	FileSizeInBytes    int64    `json:"file_size_in_bytes"`
	Tags               []string `json:"tags"`
	CreatedByUser      string   `json:"created_by_user"`
	CreatedDate        string   `json:"created_date"`
	LastModifiedByUser string   `json:"last_modified_by_user"`
	LastModifiedDate   string   `json:"last_modified_date"`
}

func stringArg(request mcp.CallToolRequest, name string) string {
	if v, ok := request.GetArguments()[name]; ok && v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (h *Handler) handleListPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mimeType := stringArg(request, "mimeType")
	category := stringArg(request, "category")
	tag := stringArg(request, "tag")

	var (
		paths []string
		err   error
	)
	switch {
	case mimeType != "":
		var mt mediarepo.MimeType
		if mt, err = mediarepo.ParseMimeType(mimeType); err == nil {
			paths, err = h.repo.ListFilePathsByMimeType(ctx, mt)
		}
	case category != "":
		var c mediarepo.CategoryType
		if c, err = mediarepo.ParseCategoryType(category); err == nil {
			paths, err = h.repo.ListFilePathsByCategory(ctx, c)
		}
	case tag != "":
		paths, err = h.repo.ListFilePathsByTag(ctx, tag)
	default:
		paths, err = h.repo.ListAllFilePaths(ctx)
	}
	if err != nil {
		h.logger.Error("list_media_paths failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("No media resources found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (h *Handler) resourceKey(request mcp.CallToolRequest) (mediarepo.MimeType, string, error) {
	name := stringArg(request, "resourceName")
	if name == "" {
		return mediarepo.MimeType{}, "", fmt.Errorf("resourceName is required")
	}
	mt, err := mediarepo.ParseMimeType(stringArg(request, "mimeType"))
	if err != nil {
		return mediarepo.MimeType{}, "", err
	}
	return mt, name, nil
}

func (h *Handler) handleGetInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mt, name, err := h.resourceKey(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := h.repo.Get(ctx, mt, name)
	if err != nil {
		if !mediarepo.IsNotFound(err) {
			h.logger.Error("get_media_info failed", "file_name", name, "error", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	info := MediaInfo{
		Path:               mediarepo.FileNodePathForResource(res),
		FileName:           res.FileName,
		MimeType:           res.MimeType.String(),
		Category:           res.Category().String(),
		BinaryEncoding:     res.BinaryEncoding.String(),
		FileSizeInBytes:    res.FileSizeInBytes,
		Tags:               tags,
		CreatedByUser:      res.CreatedByUser,
		CreatedDate:        mediarepo.FormatTimestamp(res.CreatedDate),
		LastModifiedByUser: res.LastModifiedByUser,
		LastModifiedDate:   mediarepo.FormatTimestamp(res.LastModifiedDate),
	}
	body, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode media info: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (h *Handler) handleHas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mt, name, err := h.resourceKey(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	exists, err := h.repo.Has(ctx, mt, name)
	if err != nil {
		h.logger.Error("has_media failed", "file_name", name, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%t", exists)), nil
}
