// Package memory provides an in-process implementation of
// mediarepo.ContentStore.
//
// Each session keeps its pending changes in a private overlay. Save merges
// the overlay into the committed tree under the store lock and fails with
// mediarepo.ErrInvalidItemState when a touched path was committed by
// another session in the meantime.
package memory
