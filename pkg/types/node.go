package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned when a node or edge is missing its id.
	ErrEmptyID = errors.New("empty id")
	// ErrEmptyIndex is returned when an entity is missing its index.
	ErrEmptyIndex = errors.New("empty index")
	// ErrEmptyName is returned when a node has no name.
	ErrEmptyName = errors.New("empty name")
)

// Node is a named, typed vertex in the knowledge graph.
//
// The id is assigned at creation and stable for the node's lifetime.
// (index, name) is a soft uniqueness key: ingest enforces it by
// merging descriptions rather than by constraint.
type Node struct {
	ID    string `json:"id"`
	Index string `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Desc  string `json:"desc"`
}

// Validate checks the fields required for persistence.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Index == "" {
		return ErrEmptyIndex
	}
	if n.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// DescText renders the node the way it is stored in vector memory and
// fed to the language model.
func (n *Node) DescText() string {
	return fmt.Sprintf("Name:%s;Type:%s;Desc:%s", n.Name, n.Type, n.Desc)
}
