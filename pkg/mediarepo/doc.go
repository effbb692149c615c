// Package mediarepo stores binary media resources (images, documents, video)
// and their metadata in a hierarchical, session based content store.
//
// Resources are addressed by a fixed taxonomy:
//
//	/media/{category}/{mimeExtension}/{fileName}          file node (media:file)
//	/media/{category}/{mimeExtension}/{fileName}/content  content node (media:resource)
//
// The content store itself is abstracted by the ContentStore, Session and
// Node interfaces. Implementations live under store/ (memory, postgres);
// binary payloads may be offloaded to a blob store (blob/memory, blob/fs,
// blob/s3).
//
// Every Repository call opens exactly one session through a SessionFactory
// and releases it before returning. What happens to pending changes when an
// operation fails is decided by the configured ExitPolicy.
//
// A store must be provisioned once with Bootstrapper.Initialize before it
// serves requests.
package mediarepo
