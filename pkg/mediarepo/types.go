package mediarepo

import (
	"fmt"
	"strings"
)

// CategoryType is the top-level grouping of a mime type. Its value is the
// node name used in the taxonomy.
type CategoryType string

// Category constants (typed).
const (
	CategoryImage    CategoryType = "image"
	CategoryDocument CategoryType = "doc"
	CategoryVideo    CategoryType = "video"
	CategoryOther    CategoryType = "other"
)

// categoryAliases maps normalized node names and constant names to categories.
var categoryAliases = map[string]CategoryType{
	"image":     CategoryImage,
	"doc":       CategoryDocument,
	"document":  CategoryDocument,
	"video":     CategoryVideo,
	"other":     CategoryOther,
	"undefined": CategoryOther,
}

// String returns the node name of the category.
func (c CategoryType) String() string { return string(c) }

// NodeName returns the name of the category node below /media.
func (c CategoryType) NodeName() string { return string(c) }

// IsValid reports whether c is one of the known categories.
func (c CategoryType) IsValid() bool {
	_, ok := categoryAliases[string(c)]
	return ok && c != ""
}

// ParseCategoryType resolves a category from its node name ("doc") or its
// constant name ("DOCUMENT"). Matching is case-insensitive and ignores
// surrounding whitespace.
func ParseCategoryType(s string) (CategoryType, error) {
	if c, ok := categoryAliases[normalize(s)]; ok {
		return c, nil
	}
	return "", &NotSupportedError{Kind: "category type", Value: s, Err: ErrCategoryTypeNotSupported}
}

// EncodingType is the optional character encoding of a text payload.
// EncodingNone marks binary payloads.
type EncodingType string

// Encoding constants (typed).
const (
	EncodingNone  EncodingType = ""
	EncodingUTF8  EncodingType = "UTF-8"
	EncodingUTF16 EncodingType = "UTF-16"
)

// EncodingNoneMarker is the stored form of EncodingNone.
const EncodingNoneMarker = "NONE"

var encodingTypes = map[string]EncodingType{
	"utf-8":  EncodingUTF8,
	"utf-16": EncodingUTF16,
}

// String returns the wire form of the encoding, or "" for EncodingNone.
func (e EncodingType) String() string { return string(e) }

// StoredValue returns the value persisted in the encoding property.
func (e EncodingType) StoredValue() string {
	if e == EncodingNone {
		return EncodingNoneMarker
	}
	return string(e)
}

// ParseEncodingType resolves an encoding from its wire form. The stored
// marker "NONE" yields EncodingNone.
func ParseEncodingType(s string) (EncodingType, error) {
	if s == EncodingNoneMarker {
		return EncodingNone, nil
	}
	if e, ok := encodingTypes[normalize(s)]; ok {
		return e, nil
	}
	return EncodingNone, &NotSupportedError{Kind: "encoding type", Value: s, Err: ErrEncodingTypeNotSupported}
}

// MimeType is an entry of the closed mime type registry. The zero value is
// not a valid mime type; obtain values from the package variables or
// ParseMimeType.
type MimeType struct {
	wire      string
	extension string
	category  CategoryType
}

// Supported mime types.
var (
	MimeTypeOctetStream = MimeType{"application/octet-stream", "B64", CategoryOther}
	MimeTypeJPEG        = MimeType{"image/jpeg", "jpeg", CategoryImage}
	MimeTypePNG         = MimeType{"image/png", "png", CategoryImage}
	MimeTypeGIF         = MimeType{"image/gif", "gif", CategoryImage}
	MimeTypeBMP         = MimeType{"image/bmp", "bmp", CategoryImage}
	MimeTypeTIFF        = MimeType{"image/tiff", "tiff", CategoryImage}
	MimeTypeSVG         = MimeType{"image/svg+xml", "svg", CategoryImage}
	MimeTypeWEBP        = MimeType{"image/webp", "webp", CategoryImage}
	MimeTypePDF         = MimeType{"application/pdf", "pdf", CategoryDocument}
	MimeTypeMP4         = MimeType{"video/mp4", "mp4", CategoryVideo}
	MimeTypeTextPlain   = MimeType{"text/plain", "txt", CategoryDocument}
	MimeTypeRTF         = MimeType{"application/rtf", "rtf", CategoryDocument}
	MimeTypeHTML        = MimeType{"text/html", "html", CategoryDocument}
	MimeTypeJSON        = MimeType{"application/json", "json", CategoryDocument}
	MimeTypeXML         = MimeType{"application/xml", "xml", CategoryDocument}
)

// mimeTypes keeps registry order; skeleton creation and listings follow it.
var mimeTypes = []MimeType{
	MimeTypeOctetStream,
	MimeTypeJPEG,
	MimeTypePNG,
	MimeTypeGIF,
	MimeTypeBMP,
	MimeTypeTIFF,
	MimeTypeSVG,
	MimeTypeWEBP,
	MimeTypePDF,
	MimeTypeMP4,
	MimeTypeTextPlain,
	MimeTypeRTF,
	MimeTypeHTML,
	MimeTypeJSON,
	MimeTypeXML,
}

var mimeTypesByWire = func() map[string]MimeType {
	m := make(map[string]MimeType, len(mimeTypes))
	for _, mt := range mimeTypes {
		m[normalize(mt.wire)] = mt
	}
	return m
}()

// ParseMimeType resolves a mime type from its wire string, case-insensitive.
func ParseMimeType(s string) (MimeType, error) {
	if mt, ok := mimeTypesByWire[normalize(s)]; ok {
		return mt, nil
	}
	return MimeType{}, &NotSupportedError{Kind: "mime type", Value: s, Err: ErrMimeTypeNotSupported}
}

// MimeTypes returns all supported mime types in registry order.
func MimeTypes() []MimeType {
	out := make([]MimeType, len(mimeTypes))
	copy(out, mimeTypes)
	return out
}

// Categories returns the distinct categories used by the registry, in order
// of first appearance.
func Categories() []CategoryType {
	var out []CategoryType
	seen := make(map[CategoryType]bool)
	for _, mt := range mimeTypes {
		if !seen[mt.category] {
			seen[mt.category] = true
			out = append(out, mt.category)
		}
	}
	return out
}

// String returns the wire string, e.g. "image/jpeg".
func (m MimeType) String() string { return m.wire }

// Extension returns the file extension, which doubles as the mime type node name.
func (m MimeType) Extension() string { return m.extension }

// Category returns the category the mime type belongs to.
func (m MimeType) Category() CategoryType { return m.category }

// IsZero reports whether m is the zero value.
func (m MimeType) IsZero() bool { return m.wire == "" }

// GoString keeps %#v output readable in test failures.
func (m MimeType) GoString() string {
	return fmt.Sprintf("MimeType(%s)", m.wire)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
