package host

import (
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/ardnew/softchar/pkg"
)

// Node is a character device node: a name bound to a (major, minor) pair.
type Node struct {
	Name  string
	Major uint32
	Minor int
}

// String returns the node in ls -l style, e.g. "/dev/simpleCharDevice0 c 228,0".
func (n Node) String() string {
	return fmt.Sprintf("%s c %d,%d", n.Name, n.Major, n.Minor)
}

// Namespace holds device nodes by name. It plays the part of the
// filesystem's /dev: it only records which numbers a name refers to.
type Namespace struct {
	mutex sync.RWMutex
	nodes map[string]Node
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{nodes: make(map[string]Node)}
}

// Mknod creates a node named name referring to (major, minor).
func (ns *Namespace) Mknod(name string, major uint32, minor int) error {
	if name == "" || minor < 0 {
		return fmt.Errorf("mknod %q %d,%d: %w", name, major, minor, pkg.ErrInvalidParameter)
	}
	name = path.Clean(name)

	ns.mutex.Lock()
	defer ns.mutex.Unlock()

	if _, ok := ns.nodes[name]; ok {
		return fmt.Errorf("mknod %s: %w", name, pkg.ErrExists)
	}
	ns.nodes[name] = Node{Name: name, Major: major, Minor: minor}

	pkg.LogDebug(pkg.ComponentHost, "mknod",
		"name", name,
		"major", major,
		"minor", minor)

	return nil
}

// Resolve returns the node named name.
func (ns *Namespace) Resolve(name string) (Node, error) {
	ns.mutex.RLock()
	defer ns.mutex.RUnlock()

	node, ok := ns.nodes[path.Clean(name)]
	if !ok {
		return Node{}, fmt.Errorf("resolve %s: %w", name, pkg.ErrNoDevice)
	}
	return node, nil
}

// Exists reports whether a node named name exists.
func (ns *Namespace) Exists(name string) bool {
	_, err := ns.Resolve(name)
	return err == nil
}

// Remove deletes the node named name. Open files are unaffected.
func (ns *Namespace) Remove(name string) error {
	name = path.Clean(name)

	ns.mutex.Lock()
	defer ns.mutex.Unlock()

	if _, ok := ns.nodes[name]; !ok {
		return fmt.Errorf("remove %s: %w", name, pkg.ErrNoDevice)
	}
	delete(ns.nodes, name)
	return nil
}

// Nodes returns every node ordered by name.
func (ns *Namespace) Nodes() []Node {
	ns.mutex.RLock()
	list := make([]Node, 0, len(ns.nodes))
	for _, node := range ns.nodes {
		list = append(list, node)
	}
	ns.mutex.RUnlock()

	sort.Slice(list, func(a, b int) bool {
		return list[a].Name < list[b].Name
	})
	return list
}
