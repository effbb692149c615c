package mediarepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Mapper converts between resources and their file/content node pair
type Mapper struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewMapper creates a mapper that rejects payloads above maxFileSize bytes.
func NewMapper(maxFileSize int64, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{maxFileSize: maxFileSize, logger: logger}
}

// MaxFileSize returns the payload limit in bytes.
func (m *Mapper) MaxFileSize() int64 {
	return m.maxFileSize
}

// ToResource reads the resource stored below fileNode.
func (m *Mapper) ToResource(ctx context.Context, fileNode Node) (Resource, error) {
	if s := fileNode.Session(); s == nil || !s.IsLive() {
		return Resource{}, fmt.Errorf("read %s: %w", fileNode.Path(), ErrSessionExpired)
	}

	contentNode, err := fileNode.GetNode(ctx, ContentNodeName)
	if err != nil && !errors.Is(err, ErrPathNotFound) {
		return Resource{}, err
	}
	if err != nil || !fileNode.IsNodeType(NodeTypeMedia) || !contentNode.IsNodeType(NodeTypeContent) {
		m.logger.Error("malformed file node",
			"path", fileNode.Path(),
			"expected_content", fileNode.Path()+"/"+ContentNodeName)
		return Resource{}, notFound("map node", fileNode.Path())
	}

	r := Resource{FileName: fileNode.Name()}
	props := propertyReader{ctx: ctx, node: contentNode}

	r.Data = props.binary(PropertyData)
	if enc, ok := props.optionalString(PropertyEncoding); ok && props.err == nil {
		if r.BinaryEncoding, err = ParseEncodingType(enc); err != nil {
			return Resource{}, err
		}
	}
	r.FileSizeInBytes = props.long(PropertyFileSize)
	mime := props.string(PropertyMimeType)
	r.LastModifiedByUser = props.string(PropertyLastModifiedBy)
	r.LastModifiedDate = props.date(PropertyLastModified)
	r.CreatedByUser = props.string(PropertyCreatedBy)
	r.CreatedDate = props.date(PropertyCreated)
	r.Tags = props.strings(PropertyTags)
	if props.err != nil {
		m.logger.Error("failed to read content node", "path", contentNode.Path(), "error", props.err)
		return Resource{}, props.err
	}

	if r.MimeType, err = ParseMimeType(mime); err != nil {
		return Resource{}, err
	}
	return r, nil
}

// FromResource creates the file and content nodes of r below parent and
// returns the file node. The size limit is checked before anything is
// written.
func (m *Mapper) FromResource(ctx context.Context, r Resource, parent Node) (Node, error) {
	fileNode, err := m.fromResource(ctx, r, parent)
	if err != nil {
		m.logger.Error("failed to create nodes for resource", "file_name", r.FileName, "error", err)
		return nil, err
	}
	return fileNode, nil
}

func (m *Mapper) fromResource(ctx context.Context, r Resource, parent Node) (Node, error) {
	if size := int64(len(r.Data)); size > m.maxFileSize {
		return nil, &FileSizeError{FileName: r.FileName, Size: size, Limit: m.maxFileSize}
	}

	fileNode, err := parent.AddNode(ctx, r.FileName, NodeTypeMedia)
	if err != nil {
		return nil, err
	}
	contentNode, err := fileNode.AddNode(ctx, ContentNodeName, NodeTypeContent)
	if err != nil {
		return nil, err
	}

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	props := []struct {
		name  string
		value Value
	}{
		{PropertyData, BinaryValue(r.Data)},
		{PropertyEncoding, StringValue(r.BinaryEncoding.StoredValue())},
		{PropertyMimeType, StringValue(r.MimeType.String())},
		{PropertyFileSize, LongValue(r.FileSizeInBytes)},
		{PropertyLastModified, DateValue(r.LastModifiedDate)},
		{PropertyLastModifiedBy, StringValue(r.LastModifiedByUser)},
		{PropertyCreated, DateValue(r.CreatedDate)},
		{PropertyCreatedBy, StringValue(r.CreatedByUser)},
		{PropertyTags, StringsValue(tags)},
	}
	for _, p := range props {
		if err := contentNode.SetProperty(ctx, p.name, p.value); err != nil {
			return nil, fmt.Errorf("set %s: %w", p.name, err)
		}
	}
	return fileNode, nil
}

// propertyReader reads typed properties and keeps the first error.
type propertyReader struct {
	ctx  context.Context
	node Node
	err  error
}

func (p *propertyReader) value(name string) (Value, bool) {
	if p.err != nil {
		return Value{}, false
	}
	v, err := p.node.Property(p.ctx, name)
	if err != nil {
		p.err = fmt.Errorf("read %s of %s: %w", name, p.node.Path(), err)
		return Value{}, false
	}
	return v, true
}

func (p *propertyReader) fail(name string, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("read %s of %s: %w", name, p.node.Path(), err)
	}
}

func (p *propertyReader) string(name string) string {
	v, ok := p.value(name)
	if !ok {
		return ""
	}
	s, err := v.AsString()
	p.fail(name, err)
	return s
}

func (p *propertyReader) optionalString(name string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	if has, err := p.node.HasProperty(p.ctx, name); err != nil || !has {
		p.fail(name, err)
		return "", false
	}
	return p.string(name), true
}

func (p *propertyReader) strings(name string) []string {
	if p.err != nil {
		return nil
	}
	if has, err := p.node.HasProperty(p.ctx, name); err != nil || !has {
		p.fail(name, err)
		return []string{}
	}
	v, ok := p.value(name)
	if !ok {
		return nil
	}
	ss, err := v.AsStrings()
	p.fail(name, err)
	return ss
}

func (p *propertyReader) long(name string) int64 {
	v, ok := p.value(name)
	if !ok {
		return 0
	}
	n, err := v.AsLong()
	p.fail(name, err)
	return n
}

func (p *propertyReader) date(name string) time.Time {
	v, ok := p.value(name)
	if !ok {
		return time.Time{}
	}
	t, err := v.AsDate()
	p.fail(name, err)
	return t
}

func (p *propertyReader) binary(name string) []byte {
	v, ok := p.value(name)
	if !ok {
		return nil
	}
	b, err := v.AsBinary()
	p.fail(name, err)
	return b
}
