// Package binarykey derives object keys for binary property payloads that
// are offloaded to a blob store.
package binarykey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for binary key generation strategies
type Generator interface {
	// GenerateKey creates a key for one write of a binary property.
	// writeID is unique per write so a rolled back write never clobbers
	// committed data.
	GenerateKey(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Property string // property name, e.g. "jcr:data"
	FileName string
	MimeType string
	Category string
}

// FlatGenerator lays keys out as B/{nodeID}/{writeID}[/{property}]
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string {
	if metadata != nil && metadata.Property != "" {
		return fmt.Sprintf("B/%s/%s/%s", nodeID, writeID, sanitizePathComponent(metadata.Property))
	}
	return fmt.Sprintf("B/%s/%s", nodeID, writeID)
}

// ShardedGenerator provides Git-style sharded keys grouped by category:
// binaries/{category}/objects/ab/cd1234ef5678_filename
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(writeID.String(), "-", "")
	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(id) {
		shardLength = 2
	}
	shardDir := id[:shardLength]
	filename := id[shardLength:]

	category := "other"
	if metadata != nil {
		if metadata.Category != "" {
			category = sanitizePathComponent(metadata.Category)
		}
		if metadata.FileName != "" {
			filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
		}
	}
	return fmt.Sprintf("binaries/%s/objects/%s/%s", category, shardDir, filename)
}

// CustomFuncGenerator allows callers to provide their own key function
type CustomFuncGenerator struct {
	GenerateFunc func(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(nodeID, writeID uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(nodeID, writeID, metadata)
}

// ForLayout returns the generator registered for a layout name ("flat" or
// "sharded").
func ForLayout(layout string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(layout)) {
	case "", "sharded":
		return NewShardedGenerator(), nil
	case "flat":
		return NewFlatGenerator(), nil
	}
	return nil, fmt.Errorf("unknown binary key layout %q", layout)
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeFilename(component))
}
