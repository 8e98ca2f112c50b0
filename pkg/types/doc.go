// Package types defines the data model shared by the graphrag engine,
// its storage adapters, and the HTTP surface.
//
// Every entity is scoped by an index, a string naming the logical
// corpus it belongs to. Nodes carry an accumulated natural-language
// description; edges carry a relationship label that may be the
// semantic merge of several extracted labels.
package types
