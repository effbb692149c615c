package store

import (
	"fmt"
	"path"
	"strings"

	"github.com/tendant/simple-media/pkg/mediarepo"
)

// RootPath is the path of the root node
const RootPath = "/"

// Parent returns the parent path of p. The parent of a top level node is
// RootPath.
func Parent(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return RootPath
	}
	return dir
}

// Name returns the last segment of p.
func Name(p string) string {
	if p == RootPath {
		return ""
	}
	return path.Base(p)
}

// Join appends a relative path to an absolute one.
func Join(base, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return path.Clean(rel)
	}
	return path.Clean(base + "/" + rel)
}

// IsDescendant reports whether p lies strictly below ancestor.
func IsDescendant(p, ancestor string) bool {
	if ancestor == RootPath {
		return p != RootPath
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// Depth returns the number of segments of p.
func Depth(p string) int {
	if p == RootPath {
		return 0
	}
	return strings.Count(p, "/")
}

// ValidateName checks that name can be used as a single path segment.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/[]|*\t\r\n") {
		return fmt.Errorf("%w: %q", mediarepo.ErrInvalidNodeName, name)
	}
	return nil
}

// ValidatePath checks that p is an absolute, clean path.
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return fmt.Errorf("%w: path %q is not absolute", mediarepo.ErrInvalidNodeName, p)
	}
	return nil
}
