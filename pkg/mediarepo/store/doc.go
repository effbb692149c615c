// Package store holds the pieces shared by the content store engines: the
// node type registry and tree path helpers.
package store
