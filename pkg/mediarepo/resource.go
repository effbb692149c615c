package mediarepo

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 UTC layout used when rendering resource dates.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Resource is a binary media asset together with its metadata. Values
// returned by the repository are snapshots with the payload fully read.
type Resource struct {
	FileName           string       `json:"file_name"`
	MimeType           MimeType     `json:"-"`
	BinaryEncoding     EncodingType `json:"binary_encoding,omitempty"`
	Data               []byte       `json:"-"`
	FileSizeInBytes    int64        `json:"file_size_in_bytes"`
	Tags               []string     `json:"tags"`
	CreatedByUser      string       `json:"created_by_user"`
	CreatedDate        time.Time    `json:"created_date"`
	LastModifiedByUser string       `json:"last_modified_by_user"`
	LastModifiedDate   time.Time    `json:"last_modified_date"`
}

// NewResource builds a resource whose audit fields are both set to user and now.
func NewResource(fileName string, mimeType MimeType, encoding EncodingType, data []byte, tags []string, user string) Resource {
	now := time.Now().UTC()
	return Resource{
		FileName:           fileName,
		MimeType:           mimeType,
		BinaryEncoding:     encoding,
		Data:               data,
		FileSizeInBytes:    int64(len(data)),
		Tags:               tags,
		CreatedByUser:      user,
		CreatedDate:        now,
		LastModifiedByUser: user,
		LastModifiedDate:   now,
	}
}

// ParseResource is NewResource for wire strings. An empty encoding means
// EncodingNone.
func ParseResource(fileName, mimeType, encoding string, data []byte, tags []string, user string) (Resource, error) {
	mt, err := ParseMimeType(mimeType)
	if err != nil {
		return Resource{}, err
	}
	enc := EncodingNone
	if strings.TrimSpace(encoding) != "" {
		if enc, err = ParseEncodingType(encoding); err != nil {
			return Resource{}, err
		}
	}
	return NewResource(fileName, mt, enc, data, tags, user), nil
}

// Category is a shortcut for r.MimeType.Category().
func (r Resource) Category() CategoryType {
	return r.MimeType.Category()
}

// Equal compares two resources. Tags are compared as sets, payloads byte by
// byte and dates at millisecond precision.
func (r Resource) Equal(o Resource) bool {
	return r.FileName == o.FileName &&
		r.MimeType == o.MimeType &&
		r.BinaryEncoding == o.BinaryEncoding &&
		r.FileSizeInBytes == o.FileSizeInBytes &&
		bytes.Equal(r.Data, o.Data) &&
		sameTags(r.Tags, o.Tags) &&
		r.CreatedByUser == o.CreatedByUser &&
		r.LastModifiedByUser == o.LastModifiedByUser &&
		r.CreatedDate.UnixMilli() == o.CreatedDate.UnixMilli() &&
		r.LastModifiedDate.UnixMilli() == o.LastModifiedDate.UnixMilli()
}

func (r Resource) String() string {
	enc := "NONE"
	if r.BinaryEncoding != EncodingNone {
		enc = r.BinaryEncoding.String()
	}
	return fmt.Sprintf(
		"Resource(fileName=%s, mimeType=%s, binaryEncoding=%s, fileSizeInBytes=%d, tags=%v, createdByUser=%s, createdDate=%s, lastModifiedByUser=%s, lastModifiedDate=%s)",
		r.FileName, r.MimeType, enc, r.FileSizeInBytes, r.Tags,
		r.CreatedByUser, FormatTimestamp(r.CreatedDate),
		r.LastModifiedByUser, FormatTimestamp(r.LastModifiedDate),
	)
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func sameTags(a, b []string) bool {
	return tagSet(a).equal(tagSet(b))
}

type stringSet map[string]struct{}

func tagSet(tags []string) stringSet {
	s := make(stringSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s stringSet) equal(o stringSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}
