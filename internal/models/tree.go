// Package models defines the domain types shared by the wiki packages.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Node is one element of a Tree: either a *DirNode or a *FileNode.
type Node interface {
	NodeName() string
	node()
}

// DirNode is a folder with its own ordered children.
type DirNode struct {
	Name     string
	Children Tree
}

// FileNode is a content file. Name is the on-disk file name, extension included.
type FileNode struct {
	Name string
	Slug string
}

func (d *DirNode) NodeName() string  { return d.Name }
func (f *FileNode) NodeName() string { return f.Name }
func (*DirNode) node()               {}
func (*FileNode) node()              {}

// Tree is an ordered sequence of nodes. Directories come first, then files;
// each group is ordered case-insensitively with a case-sensitive tiebreak.
type Tree []Node

// Slugs returns every file slug in the tree, depth-first.
func (t Tree) Slugs() []string {
	var out []string
	for _, n := range t {
		switch v := n.(type) {
		case *DirNode:
			out = append(out, v.Children.Slugs()...)
		case *FileNode:
			out = append(out, v.Slug)
		}
	}
	return out
}

// wireNode is the persisted shape: {type, name, path} or {type, name, children}.
type wireNode struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Path     string          `json:"path,omitempty"`
	Children json.RawMessage `json:"children,omitempty"`
}

var errBadNode = errors.New("models: malformed tree node")

// MarshalJSON encodes the tree in the cache-file format. A nil tree encodes as [].
func (t Tree) MarshalJSON() ([]byte, error) {
	out := make([]wireNode, 0, len(t))
	for _, n := range t {
		switch v := n.(type) {
		case *DirNode:
			children, err := json.Marshal(v.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, wireNode{Type: string(EntryDir), Name: v.Name, Children: children})
		case *FileNode:
			out = append(out, wireNode{Type: string(EntryFile), Name: v.Name, Path: v.Slug})
		default:
			return nil, fmt.Errorf("%w: %T", errBadNode, n)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects any node that does not have a valid shape, so a
// damaged cache file surfaces as a decode error.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var raw []wireNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Tree, 0, len(raw))
	for _, w := range raw {
		switch EntryType(w.Type) {
		case EntryDir:
			if len(w.Children) == 0 {
				return fmt.Errorf("%w: dir %q has no children field", errBadNode, w.Name)
			}
			var children Tree
			if err := json.Unmarshal(w.Children, &children); err != nil {
				return err
			}
			out = append(out, &DirNode{Name: w.Name, Children: children})
		case EntryFile:
			if w.Path == "" {
				return fmt.Errorf("%w: file %q has no path", errBadNode, w.Name)
			}
			out = append(out, &FileNode{Name: w.Name, Slug: w.Path})
		default:
			return fmt.Errorf("%w: type %q", errBadNode, w.Type)
		}
	}
	*t = out
	return nil
}
