package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/binarykey"
	"github.com/tendant/simple-media/pkg/mediarepo/blob"
	"github.com/tendant/simple-media/pkg/mediarepo/store"
)

// node is a handle on one media_nodes row
type node struct {
	session     *session
	id          uuid.UUID
	path        string
	primaryType string
}

func (n *node) Name() string { return store.Name(n.path) }

func (n *node) Path() string { return n.path }

func (n *node) Identifier() string { return n.id.String() }

func (n *node) PrimaryType() string { return n.primaryType }

func (n *node) Session() mediarepo.Session { return n.session }

func (n *node) IsNodeType(typeName string) bool {
	return n.session.store.registry.IsNodeType(n.primaryType, typeName)
}

// properties loads the stored properties of the row
func (n *node) properties(ctx context.Context) (map[string]mediarepo.Value, error) {
	if err := n.session.checkLive(); err != nil {
		return nil, err
	}
	var raw []byte
	err := n.session.tx.QueryRow(ctx, `SELECT properties FROM media_nodes WHERE id = $1`, n.id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s no longer exists", mediarepo.ErrInvalidItemState, n.path)
	}
	if err != nil {
		return nil, handlePostgresError("load properties", err)
	}
	return decodeProperties(raw)
}

func decodeProperties(raw []byte) (map[string]mediarepo.Value, error) {
	props := make(map[string]mediarepo.Value)
	if len(raw) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return props, nil
}

func (n *node) AddNode(ctx context.Context, name, primaryType string) (mediarepo.Node, error) {
	if err := n.session.checkLive(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if !n.session.store.registry.HasNodeType(primaryType) {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, primaryType)
	}
	child := &node{
		session:     n.session,
		id:          uuid.New(),
		path:        store.Join(n.path, name),
		primaryType: primaryType,
	}
	tag, err := n.session.tx.Exec(ctx, `
		INSERT INTO media_nodes (id, path, parent_path, name, primary_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO NOTHING`,
		child.id, child.path, n.path, name, primaryType)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", child.path, handlePostgresError("add node", err))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", mediarepo.ErrItemExists, child.path)
	}
	n.session.touched[child.id] = primaryType
	return child, nil
}

func (n *node) GetNode(ctx context.Context, relPath string) (mediarepo.Node, error) {
	return n.session.GetNode(ctx, store.Join(n.path, relPath))
}

func (n *node) HasNode(ctx context.Context, relPath string) (bool, error) {
	return n.session.NodeExists(ctx, store.Join(n.path, relPath))
}

func (n *node) Remove(ctx context.Context) error {
	if err := n.session.checkLive(); err != nil {
		return err
	}
	if n.path == store.RootPath {
		return fmt.Errorf("%w: cannot remove root node", mediarepo.ErrConstraintViolation)
	}
	keys, err := n.subtreeBinaryKeys(ctx)
	if err != nil {
		return err
	}
	tag, err := n.session.tx.Exec(ctx, `DELETE FROM media_nodes WHERE id = $1`, n.id)
	if err != nil {
		return handlePostgresError("remove node", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s no longer exists", mediarepo.ErrInvalidItemState, n.path)
	}
	n.session.staleBlobs = append(n.session.staleBlobs, keys...)
	return nil
}

func (n *node) subtreeBinaryKeys(ctx context.Context) ([]string, error) {
	if n.session.store.blobs == nil {
		return nil, nil
	}
	rows, err := n.session.tx.Query(ctx, `
		SELECT p.value->>'binary_key'
		FROM media_nodes, jsonb_each(properties) AS p
		WHERE (path = $1 OR left(path, length($1) + 1) = $1 || '/')
		  AND p.value ? 'binary_key'`, n.path)
	if err != nil {
		return nil, handlePostgresError("collect binaries", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, handlePostgresError("collect binaries", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (n *node) SetProperty(ctx context.Context, name string, value mediarepo.Value) error {
	if err := n.session.checkLive(); err != nil {
		return err
	}
	reg := n.session.store.registry
	if err := reg.CheckProperty(n.primaryType, name, value); err != nil {
		return err
	}

	old, err := n.properties(ctx)
	if err != nil {
		return err
	}
	stored, err := n.offload(ctx, name, value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	_, err = n.session.tx.Exec(ctx, `
		UPDATE media_nodes
		SET properties = properties || jsonb_build_object($2::text, $3::jsonb),
		    version = version + 1, updated_at = now()
		WHERE id = $1`,
		n.id, name, string(raw))
	if err != nil {
		return handlePostgresError("set property", err)
	}
	if prev, ok := old[name]; ok && prev.BinaryKey != "" {
		n.session.staleBlobs = append(n.session.staleBlobs, prev.BinaryKey)
	}
	n.session.touched[n.id] = n.primaryType
	return nil
}

// offload moves binary payloads to the blob store, keeping only the key
func (n *node) offload(ctx context.Context, name string, value mediarepo.Value) (mediarepo.Value, error) {
	blobs := n.session.store.blobs
	if blobs == nil || value.Type != mediarepo.PropertyTypeBinary {
		return value, nil
	}
	meta := &binarykey.KeyMetadata{Property: name, FileName: store.Name(store.Parent(n.path))}
	if c, err := mediarepo.CategoryFromPath(n.path); err == nil {
		meta.Category = c.NodeName()
	}
	key := n.session.store.keys.GenerateKey(n.id, uuid.New(), meta)
	params := blob.PutParams{Size: int64(len(value.Binary))}
	if err := blobs.Put(ctx, key, bytes.NewReader(value.Binary), params); err != nil {
		return mediarepo.Value{}, fmt.Errorf("offload %s of %s: %w", name, n.path, err)
	}
	n.session.writtenBlobs = append(n.session.writtenBlobs, key)
	return mediarepo.Value{Type: mediarepo.PropertyTypeBinary, BinaryKey: key}, nil
}

func (n *node) Property(ctx context.Context, name string) (mediarepo.Value, error) {
	switch name {
	case mediarepo.PropertyPath:
		return mediarepo.StringValue(n.path), nil
	case mediarepo.PropertyName:
		return mediarepo.NameValue(n.Name()), nil
	case mediarepo.PropertyPrimaryType:
		return mediarepo.NameValue(n.primaryType), nil
	case mediarepo.PropertyUUID:
		return mediarepo.StringValue(n.Identifier()), nil
	}
	props, err := n.properties(ctx)
	if err != nil {
		return mediarepo.Value{}, err
	}
	v, ok := props[name]
	if !ok {
		return mediarepo.Value{}, fmt.Errorf("%w: property %s of %s", mediarepo.ErrPathNotFound, name, n.path)
	}
	if v.BinaryKey != "" && n.session.store.blobs != nil {
		data, err := blob.ReadAll(ctx, n.session.store.blobs, v.BinaryKey)
		if err != nil {
			return mediarepo.Value{}, fmt.Errorf("load %s of %s: %w", name, n.path, err)
		}
		v.Binary = data
	}
	return v, nil
}

func (n *node) HasProperty(ctx context.Context, name string) (bool, error) {
	switch name {
	case mediarepo.PropertyPath, mediarepo.PropertyName, mediarepo.PropertyPrimaryType, mediarepo.PropertyUUID:
		return true, nil
	}
	props, err := n.properties(ctx)
	if err != nil {
		return false, err
	}
	_, ok := props[name]
	return ok, nil
}
