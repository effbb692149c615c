package mediarepo

// Media namespace
const (
	MediaNamespacePrefix = "media"
	MediaNamespaceURI    = "https://dmalo.de/jcr/oak/media/1.0"
)

// Built-in node types
const (
	NodeTypeBase         = "nt:base"
	NodeTypeUnstructured = "nt:unstructured"
	NodeTypeFile         = "nt:file"
	NodeTypeResource     = "nt:resource"
	NodeTypeRoot         = "rep:root"
)

// Media node types
const (
	NodeTypeSection  = "media:section"
	NodeTypeCategory = "media:category"
	NodeTypeMimeType = "media:mimetype"
	NodeTypeMedia    = "media:file"
	NodeTypeContent  = "media:resource"
)

// Property names
const (
	PropertyPath           = "jcr:path"
	PropertyData           = "jcr:data"
	PropertyEncoding       = "jcr:encoding"
	PropertyMimeType       = "jcr:mimeType"
	PropertyLastModified   = "jcr:lastModified"
	PropertyLastModifiedBy = "jcr:lastModifiedBy"
	PropertyName           = "jcr:name"
	PropertyCreated        = "jcr:created"
	PropertyPrimaryType    = "jcr:primaryType"
	PropertyUUID           = "jcr:uuid"
	PropertyCreatedBy      = "media:createdBy"
	PropertyTags           = "media:tags"
	PropertyFileSize       = "media:filesize"
)

const (
	// DefaultAdminPassword is the password a freshly created store accepts for the admin user
	DefaultAdminPassword = "admin"

	ContentNodeName = "content"
	MediaRootName   = "media"
	MediaRootPath   = "/" + MediaRootName
)

// MediaNodeTypes returns the node type definitions registered at bootstrap.
func MediaNodeTypes() []NodeTypeDefinition {
	return []NodeTypeDefinition{
		{Name: NodeTypeSection, SuperTypes: []string{NodeTypeUnstructured}},
		{Name: NodeTypeCategory, SuperTypes: []string{NodeTypeUnstructured}},
		{Name: NodeTypeMimeType, SuperTypes: []string{NodeTypeUnstructured}},
		{Name: NodeTypeMedia, SuperTypes: []string{NodeTypeFile}},
		{
			Name:       NodeTypeContent,
			SuperTypes: []string{NodeTypeResource},
			Properties: []PropertyDefinition{
				{Name: PropertyCreatedBy, RequiredType: PropertyTypeString, Mandatory: true, FullTextSearchable: true},
				{Name: PropertyCreated, RequiredType: PropertyTypeDate, Mandatory: true},
				{Name: PropertyLastModifiedBy, RequiredType: PropertyTypeString, Mandatory: true, FullTextSearchable: true},
				{Name: PropertyLastModified, RequiredType: PropertyTypeDate, Mandatory: true},
				{Name: PropertyFileSize, RequiredType: PropertyTypeLong, Mandatory: true},
				{Name: PropertyTags, RequiredType: PropertyTypeString, Multiple: true, FullTextSearchable: true},
			},
		},
	}
}
