package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-media/pkg/mediarepo"
)

// Built-in namespaces
var builtinNamespaces = map[string]string{
	"jcr": "http://www.jcp.org/jcr/1.0",
	"nt":  "http://www.jcp.org/jcr/nt/1.0",
	"mix": "http://www.jcp.org/jcr/mix/1.0",
	"rep": "internal",
}

// NodeTypeHierarchyNode is the common supertype of files and folders
const NodeTypeHierarchyNode = "nt:hierarchyNode"

// NodeTypeFolder is a plain folder
const NodeTypeFolder = "nt:folder"

func builtinNodeTypes() []mediarepo.NodeTypeDefinition {
	return []mediarepo.NodeTypeDefinition{
		{Name: mediarepo.NodeTypeBase},
		{Name: mediarepo.NodeTypeUnstructured, SuperTypes: []string{mediarepo.NodeTypeBase}},
		{Name: mediarepo.NodeTypeRoot, SuperTypes: []string{mediarepo.NodeTypeUnstructured}},
		{Name: NodeTypeHierarchyNode, SuperTypes: []string{mediarepo.NodeTypeBase}},
		{Name: NodeTypeFolder, SuperTypes: []string{NodeTypeHierarchyNode}},
		{Name: mediarepo.NodeTypeFile, SuperTypes: []string{NodeTypeHierarchyNode}},
		{
			Name:       mediarepo.NodeTypeResource,
			SuperTypes: []string{mediarepo.NodeTypeBase},
			Properties: []mediarepo.PropertyDefinition{
				{Name: mediarepo.PropertyData, RequiredType: mediarepo.PropertyTypeBinary, Mandatory: true},
				{Name: mediarepo.PropertyMimeType, RequiredType: mediarepo.PropertyTypeString},
				{Name: mediarepo.PropertyEncoding, RequiredType: mediarepo.PropertyTypeString},
				{Name: mediarepo.PropertyLastModified, RequiredType: mediarepo.PropertyTypeDate},
				{Name: mediarepo.PropertyLastModifiedBy, RequiredType: mediarepo.PropertyTypeString},
			},
		},
	}
}

// Registry holds namespaces and node type definitions. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]string
	types      map[string]mediarepo.NodeTypeDefinition
}

// NewRegistry returns a registry with the built-in namespaces and node types.
func NewRegistry() *Registry {
	r := &Registry{
		namespaces: make(map[string]string, len(builtinNamespaces)),
		types:      make(map[string]mediarepo.NodeTypeDefinition),
	}
	for prefix, uri := range builtinNamespaces {
		r.namespaces[prefix] = uri
	}
	for _, def := range builtinNodeTypes() {
		r.types[def.Name] = def
	}
	return r
}

// RegisterNamespace adds a prefix mapping. A prefix can only be registered once.
func (r *Registry) RegisterNamespace(prefix, uri string) error {
	if prefix == "" || uri == "" || strings.Contains(prefix, ":") {
		return fmt.Errorf("%w: invalid namespace %q -> %q", mediarepo.ErrConstraintViolation, prefix, uri)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.namespaces[prefix]; ok {
		return fmt.Errorf("%w: %s", mediarepo.ErrNamespaceExists, prefix)
	}
	r.namespaces[prefix] = uri
	return nil
}

// Namespaces returns a copy of the prefix to URI mappings.
func (r *Registry) Namespaces() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.namespaces))
	for k, v := range r.namespaces {
		out[k] = v
	}
	return out
}

// CheckNodeType validates def against the registry without registering it.
func (r *Registry) CheckNodeType(def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.check(def, allowUpdate)
}

func (r *Registry) check(def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	prefix, _, ok := strings.Cut(def.Name, ":")
	if !ok {
		return fmt.Errorf("%w: node type %q has no namespace prefix", mediarepo.ErrConstraintViolation, def.Name)
	}
	if _, ok := r.namespaces[prefix]; !ok {
		return fmt.Errorf("%w: %s", mediarepo.ErrNamespaceNotRegistered, prefix)
	}
	if _, exists := r.types[def.Name]; exists && !allowUpdate {
		return fmt.Errorf("%w: node type %s", mediarepo.ErrItemExists, def.Name)
	}
	for _, st := range def.SuperTypes {
		if _, ok := r.types[st]; !ok {
			return fmt.Errorf("%w: supertype %s of %s", mediarepo.ErrNoSuchNodeType, st, def.Name)
		}
		if st == def.Name || r.isNodeType(st, def.Name) {
			return fmt.Errorf("%w: %s would inherit from itself", mediarepo.ErrConstraintViolation, def.Name)
		}
	}
	return nil
}

// RegisterNodeType adds or, with allowUpdate, replaces a definition.
func (r *Registry) RegisterNodeType(def mediarepo.NodeTypeDefinition, allowUpdate bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(def, allowUpdate); err != nil {
		return err
	}
	r.types[def.Name] = cloneDefinition(def)
	return nil
}

// Load replaces registered definitions without validation. Engines use it
// to restore persisted state.
func (r *Registry) Load(namespaces map[string]string, defs []mediarepo.NodeTypeDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range namespaces {
		r.namespaces[k] = v
	}
	for _, def := range defs {
		r.types[def.Name] = cloneDefinition(def)
	}
}

// HasNodeType reports whether name is registered.
func (r *Registry) HasNodeType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// NodeType returns the definition of name.
func (r *Registry) NodeType(name string) (mediarepo.NodeTypeDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[name]
	if !ok {
		return mediarepo.NodeTypeDefinition{}, fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, name)
	}
	return cloneDefinition(def), nil
}

// IsNodeType reports whether primary is typeName or inherits from it.
func (r *Registry) IsNodeType(primary, typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isNodeType(primary, typeName)
}

func (r *Registry) isNodeType(primary, typeName string) bool {
	seen := make(map[string]bool)
	queue := []string{primary}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == typeName {
			return true
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		queue = append(queue, r.types[name].SuperTypes...)
	}
	return false
}

// SubtypesOf returns typeName and every registered type inheriting from
// it, sorted by name.
func (r *Registry) SubtypesOf(typeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name := range r.types {
		if r.isNodeType(name, typeName) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// PropertyDefinitions returns the effective property templates of a type,
// own definitions taking precedence over inherited ones.
func (r *Registry) PropertyDefinitions(typeName string) map[string]mediarepo.PropertyDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]mediarepo.PropertyDefinition)
	r.collect(typeName, out, make(map[string]bool))
	return out
}

func (r *Registry) collect(typeName string, out map[string]mediarepo.PropertyDefinition, seen map[string]bool) {
	if seen[typeName] {
		return
	}
	seen[typeName] = true
	def := r.types[typeName]
	for _, p := range def.Properties {
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p
		}
	}
	for _, st := range def.SuperTypes {
		r.collect(st, out, seen)
	}
}

// CheckProperty validates a single value against the templates of typeName.
func (r *Registry) CheckProperty(typeName, name string, v mediarepo.Value) error {
	def, ok := r.PropertyDefinitions(typeName)[name]
	if !ok {
		return nil
	}
	return checkValue(typeName, def, v)
}

// Validate checks that props satisfy the templates of typeName.
func (r *Registry) Validate(typeName string, props map[string]mediarepo.Value) error {
	if !r.HasNodeType(typeName) {
		return fmt.Errorf("%w: %s", mediarepo.ErrNoSuchNodeType, typeName)
	}
	for name, def := range r.PropertyDefinitions(typeName) {
		v, ok := props[name]
		if !ok {
			if def.Mandatory {
				return fmt.Errorf("%w: %s requires property %s", mediarepo.ErrConstraintViolation, typeName, name)
			}
			continue
		}
		if err := checkValue(typeName, def, v); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(typeName string, def mediarepo.PropertyDefinition, v mediarepo.Value) error {
	if def.RequiredType != "" && def.RequiredType != v.Type {
		return fmt.Errorf("%w: %s.%s must be %s, got %s",
			mediarepo.ErrConstraintViolation, typeName, def.Name, def.RequiredType, v.Type)
	}
	if def.Multiple != v.Multiple {
		return fmt.Errorf("%w: %s.%s multiple=%t, got multiple=%t",
			mediarepo.ErrConstraintViolation, typeName, def.Name, def.Multiple, v.Multiple)
	}
	return nil
}

// Definitions returns all registered node types sorted by name.
func (r *Registry) Definitions() []mediarepo.NodeTypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mediarepo.NodeTypeDefinition, 0, len(r.types))
	for _, def := range r.types {
		out = append(out, cloneDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cloneDefinition(def mediarepo.NodeTypeDefinition) mediarepo.NodeTypeDefinition {
	def.SuperTypes = append([]string(nil), def.SuperTypes...)
	def.Properties = append([]mediarepo.PropertyDefinition(nil), def.Properties...)
	return def
}
