package mediarepo

import "strings"

// CategoryPath returns "/media/{category}".
func CategoryPath(category string) string {
	return MediaRootPath + "/" + category
}

// TypePath returns "/media/{category}/{extension}".
func TypePath(category, extension string) string {
	return CategoryPath(category) + "/" + extension
}

// FileNodePath returns the path of the file node of a resource.
func FileNodePath(category, extension, fileName string) string {
	return TypePath(category, extension) + "/" + fileName
}

// ResourceNodePath returns the path of the content node of a resource.
func ResourceNodePath(category, extension, fileName string) string {
	return FileNodePath(category, extension, fileName) + "/" + ContentNodeName
}

// CategoryPathForMimeType returns the category path the mime type belongs to.
func CategoryPathForMimeType(mt MimeType) string {
	return CategoryPath(mt.Category().NodeName())
}

// TypePathForMimeType returns the folder holding files of the mime type.
func TypePathForMimeType(mt MimeType) string {
	return TypePath(mt.Category().NodeName(), mt.Extension())
}

// FileNodePathForMimeType returns the file node path of fileName stored as mt.
func FileNodePathForMimeType(mt MimeType, fileName string) string {
	return FileNodePath(mt.Category().NodeName(), mt.Extension(), fileName)
}

// ResourceNodePathForMimeType returns the content node path of fileName stored as mt.
func ResourceNodePathForMimeType(mt MimeType, fileName string) string {
	return ResourceNodePath(mt.Category().NodeName(), mt.Extension(), fileName)
}

// FileNodePathForResource returns the file node path of r.
func FileNodePathForResource(r Resource) string {
	return FileNodePathForMimeType(r.MimeType, r.FileName)
}

// ResourceNodePathForResource returns the content node path of r.
func ResourceNodePathForResource(r Resource) string {
	return ResourceNodePathForMimeType(r.MimeType, r.FileName)
}

// CategoryFromPath extracts the category segment of a taxonomy path such as
// "/media/image/jpeg/photo".
func CategoryFromPath(path string) (CategoryType, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", notFound("category from path", path)
	}
	return ParseCategoryType(parts[2])
}
