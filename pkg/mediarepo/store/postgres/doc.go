// Package postgres implements mediarepo.ContentStore on PostgreSQL.
//
// Every node is one row of media_nodes keyed by its absolute path; child
// rows reference their parent path and are removed with it. A session
// wraps one transaction: Save commits it and starts the next, Refresh
// without keeping changes rolls it back.
//
// Binary values can be offloaded to a blob.Store (WithBinaryStore). The
// row then keeps only the object key. Objects written by a rolled back
// transaction and objects replaced or removed by a committed one are
// deleted after the transaction ends.
package postgres
