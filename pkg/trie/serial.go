package trie

import "fmt"

// ToSerial encodes t into the nested-record form used for commit
// persistence:
//
//   - a leaf with only a value serializes to the value string
//   - a node with children and no value serializes to a segment->node map
//   - a node with both serializes to a two-element [value, children] pair
//   - an empty trie serializes to an empty map
func (t *Trie) ToSerial() any {
	return nodeToSerial(t.root)
}

func nodeToSerial(n *Node) any {
	var children map[string]any
	if len(n.children) > 0 {
		children = make(map[string]any, len(n.children))
		for k, c := range n.children {
			children[k] = nodeToSerial(c)
		}
	}

	switch {
	case n.value != nil && children == nil:
		return *n.value
	case n.value == nil && children != nil:
		return children
	case n.value != nil && children != nil:
		return []any{*n.value, children}
	default:
		return map[string]any{}
	}
}

// FromSerial decodes data (as produced by ToSerial, typically after a
// round trip through encoding/json into `any`) back into a Trie.
func FromSerial(data any) (*Trie, error) {
	root, err := nodeFromSerial(data)
	if err != nil {
		return nil, err
	}
	return &Trie{root: root}, nil
}

func nodeFromSerial(data any) (*Node, error) {
	switch v := data.(type) {
	case string:
		val := v
		return &Node{value: &val, count: 1}, nil

	case map[string]any:
		return childrenNodeFromSerial(nil, v)

	case []any:
		if len(v) != 2 {
			return nil, fmt.Errorf("trie: invalid serialized node: expected [value, children], got %d elements", len(v))
		}
		valStr, ok := v[0].(string)
		if !ok {
			return nil, fmt.Errorf("trie: invalid serialized node: value is not a string")
		}
		childrenRaw, ok := v[1].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("trie: invalid serialized node: children is not an object")
		}
		return childrenNodeFromSerial(&valStr, childrenRaw)

	default:
		return nil, fmt.Errorf("trie: invalid serialized node of type %T", data)
	}
}

func childrenNodeFromSerial(value *string, childrenRaw map[string]any) (*Node, error) {
	n := &Node{}
	if value != nil {
		v := *value
		n.value = &v
		n.count = 1
	}
	if len(childrenRaw) > 0 {
		n.children = make(map[string]*Node, len(childrenRaw))
		for k, raw := range childrenRaw {
			child, err := nodeFromSerial(raw)
			if err != nil {
				return nil, err
			}
			n.children[k] = child
			n.count += child.count
		}
	}
	return n, nil
}
