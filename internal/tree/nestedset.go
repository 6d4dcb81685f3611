// Package tree maintains nested-set bounds for hierarchical doctypes.
//
// Every node gets an interval [Lft, Rgt]; a node's descendants are exactly the
// nodes whose interval lies strictly inside its own, so one range query on
// lft/rgt returns a whole subtree.
package tree

import (
	"fmt"
	"sort"
)

// Node is the part of a record the nested set cares about
type Node struct {
	Name    string
	Parent  string
	IsGroup bool
	Lft     int
	Rgt     int
}

// CycleError reports a parent chain that loops back on itself
type CycleError struct {
	Name string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("record %q is its own ancestor", e.Name)
}

// MissingParentError reports a node whose parent is not part of the set
type MissingParentError struct {
	Name   string
	Parent string
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("parent %q of record %q does not exist", e.Parent, e.Name)
}

// Rebuild assigns Lft/Rgt to every node of a forest. Roots and siblings are
// visited in name order, so the numbering is deterministic. The input slice is
// not modified.
func Rebuild(nodes []Node) ([]Node, error) {
	byName := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := byName[n.Name]; dup {
			return nil, fmt.Errorf("duplicate record %q", n.Name)
		}
		byName[n.Name] = i
	}

	children := make(map[string][]string)
	var roots []string
	for _, n := range nodes {
		if n.Parent == "" {
			roots = append(roots, n.Name)
			continue
		}
		if _, ok := byName[n.Parent]; !ok {
			return nil, &MissingParentError{Name: n.Name, Parent: n.Parent}
		}
		children[n.Parent] = append(children[n.Parent], n.Name)
	}
	sort.Strings(roots)
	for _, kids := range children {
		sort.Strings(kids)
	}

	out := make([]Node, len(nodes))
	copy(out, nodes)

	counter := 0
	visited := make(map[string]bool, len(nodes))

	var walk func(name string) error
	walk = func(name string) error {
		if visited[name] {
			return &CycleError{Name: name}
		}
		visited[name] = true

		idx := byName[name]
		counter++
		out[idx].Lft = counter
		for _, child := range children[name] {
			if err := walk(child); err != nil {
				return err
			}
		}
		counter++
		out[idx].Rgt = counter
		return nil
	}

	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, err
		}
	}

	// Nodes never reached from a root sit on a cycle
	for _, n := range nodes {
		if !visited[n.Name] {
			return nil, &CycleError{Name: n.Name}
		}
	}

	return out, nil
}

// IsDescendant reports whether child lies strictly inside parent's interval
func IsDescendant(parent, child Node) bool {
	return child.Lft > parent.Lft && child.Rgt < parent.Rgt
}

// Ancestors walks the parent chain of name, nearest first. It stops at a root
// and returns a CycleError if the chain loops.
func Ancestors(nodes []Node, name string) ([]string, error) {
	parents := make(map[string]string, len(nodes))
	for _, n := range nodes {
		parents[n.Name] = n.Parent
	}

	var chain []string
	seen := map[string]bool{name: true}
	for current := parents[name]; current != ""; current = parents[current] {
		if seen[current] {
			return nil, &CycleError{Name: name}
		}
		seen[current] = true
		chain = append(chain, current)
	}
	return chain, nil
}

// WouldCycle reports whether re-parenting name under newParent makes name its
// own ancestor
func WouldCycle(nodes []Node, name, newParent string) (bool, error) {
	if newParent == "" {
		return false, nil
	}
	if newParent == name {
		return true, nil
	}
	chain, err := Ancestors(nodes, newParent)
	if err != nil {
		return false, err
	}
	for _, ancestor := range chain {
		if ancestor == name {
			return true, nil
		}
	}
	return false, nil
}
