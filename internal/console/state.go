package console

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/pretty"
)

type NodeKind string

const (
	NodeObject NodeKind = "object"
	NodeArray  NodeKind = "array"
	NodeLeaf   NodeKind = "leaf"
)

// StateNode is one entry in the view-data tree. Object and array nodes are
// independently expandable; everything below the root starts collapsed.
type StateNode struct {
	Key      string
	Path     string
	Kind     NodeKind
	Value    any
	Children []*StateNode
	Expanded bool
	Matched  bool

	parent *StateNode
}

// StateTree is the state inspector's model. Expansion state lives here so it
// survives tab switches; the tree is only rebuilt when a different envelope
// becomes active. A toggle from one request can race a render from another
// request of the same session, so node mutation happens under the tree's own
// lock and rendering goes through a View snapshot.
type StateTree struct {
	mu     sync.Mutex
	data   any
	root   *StateNode
	nodes  map[string]*StateNode
	filter string
}

// StateView is a copy of the tree taken for rendering, detached from any
// concurrent Toggle or SetFilter.
type StateView struct {
	Filter string
	Empty  bool
	Root   *StateNode
}

// NewStateTree builds the tree for viewData. The root is expanded, all
// deeper container nodes start collapsed.
func NewStateTree(viewData any) *StateTree {
	t := &StateTree{data: viewData, nodes: make(map[string]*StateNode)}
	t.root = t.build("root", "root", viewData, nil)
	t.root.Expanded = true
	return t
}

func (t *StateTree) build(key, path string, v any, parent *StateNode) *StateNode {
	node := &StateNode{Key: key, Path: path, parent: parent}
	t.nodes[path] = node

	switch val := v.(type) {
	case map[string]any:
		node.Kind = NodeObject
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node.Children = append(node.Children, t.build(k, path+"."+k, val[k], node))
		}
	case []any:
		node.Kind = NodeArray
		for i, item := range val {
			k := fmt.Sprintf("[%d]", i)
			node.Children = append(node.Children, t.build(k, path+k, item, node))
		}
	default:
		node.Kind = NodeLeaf
		node.Value = val
	}
	return node
}

// Empty reports whether there is nothing to inspect ("no data" state).
func (t *StateTree) Empty() bool {
	if t.data == nil {
		return true
	}
	switch v := t.data.(type) {
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// View snapshots the tree for rendering. The returned nodes are copies, so
// a concurrent Toggle or SetFilter cannot change them mid-render.
func (t *StateTree) View() StateView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StateView{Filter: t.filter, Empty: t.Empty(), Root: cloneNode(t.root)}
}

func cloneNode(n *StateNode) *StateNode {
	c := &StateNode{
		Key:      n.Key,
		Path:     n.Path,
		Kind:     n.Kind,
		Value:    n.Value,
		Expanded: n.Expanded,
		Matched:  n.Matched,
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, cloneNode(child))
	}
	return c
}

// Toggle flips the expansion of the node at path and reports the new state.
func (t *StateTree) Toggle(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[path]
	if !ok {
		return false
	}
	node.Expanded = !node.Expanded
	return node.Expanded
}

func (t *StateTree) Filter() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// SetFilter applies a case-insensitive key filter. Every match is marked and
// its ancestors forced open so the match is visible. Clearing the filter
// clears the marks but leaves expansion as the user last had it.
func (t *StateTree) SetFilter(q string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.filter = q
	for _, n := range t.nodes {
		n.Matched = false
	}
	if q == "" {
		return
	}

	needle := strings.ToLower(q)
	for _, n := range t.nodes {
		if strings.Contains(strings.ToLower(n.Key), needle) {
			n.Matched = true
			for p := n.parent; p != nil; p = p.parent {
				p.Expanded = true
			}
		}
	}
}

// Export renders the whole view-data tree as formatted text.
func (t *StateTree) Export() string {
	if t.Empty() {
		return "no data\n"
	}
	b, err := json.Marshal(t.data)
	if err != nil {
		return "no data\n"
	}
	return string(pretty.Pretty(b))
}
