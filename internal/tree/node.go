package tree

import (
	"encoding/json"
	"fmt"
)

// Node is a sealed interface over workspace entries.
// Only *File and *Dir implement it. The JSON form carries a "type"
// discriminator ("file" or "directory") so trees round-trip through
// the snapshot wire format without reflection guesswork.
type Node interface {
	node() // Sealed - only these types implement it
}

// File is a leaf entry holding content and its last-modified instant
// in epoch milliseconds.
type File struct {
	Name         string
	Content      string
	LastModified int64
}

func (*File) node() {}

// Dir is an interior entry. Children is keyed by entry name.
type Dir struct {
	Name     string
	Children map[string]Node
}

func (*Dir) node() {}

// NewDir creates an empty directory with the given name.
func NewDir(name string) *Dir {
	return &Dir{Name: name, Children: map[string]Node{}}
}

type fileJSON struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Content      string `json:"content"`
	LastModified int64  `json:"lastModified"`
}

type dirJSON struct {
	Name     string                     `json:"name"`
	Type     string                     `json:"type"`
	Children map[string]json.RawMessage `json:"children"`
}

// MarshalJSON implements json.Marshaler for File.
func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileJSON{
		Name:         f.Name,
		Type:         "file",
		Content:      f.Content,
		LastModified: f.LastModified,
	})
}

// MarshalJSON implements json.Marshaler for Dir. A nil children map
// marshals as {} so the empty root always has the canonical shape.
func (d *Dir) MarshalJSON() ([]byte, error) {
	children := make(map[string]*json.RawMessage, len(d.Children))
	for name, child := range d.Children {
		data, err := marshalNode(child)
		if err != nil {
			return nil, fmt.Errorf("child %q: %w", name, err)
		}
		raw := json.RawMessage(data)
		children[name] = &raw
	}
	return json.Marshal(struct {
		Name     string                      `json:"name"`
		Type     string                      `json:"type"`
		Children map[string]*json.RawMessage `json:"children"`
	}{d.Name, "directory", children})
}

func marshalNode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case *File:
		return v.MarshalJSON()
	case *Dir:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown node type: %T", n)
	}
}

// decodeNode dispatches on the "type" discriminator.
func decodeNode(data []byte) (Node, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "file":
		var raw fileJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return &File{Name: raw.Name, Content: raw.Content, LastModified: raw.LastModified}, nil

	case "directory":
		var raw dirJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		dir := NewDir(raw.Name)
		for name, childData := range raw.Children {
			child, err := decodeNode(childData)
			if err != nil {
				return nil, fmt.Errorf("child %q: %w", name, err)
			}
			dir.Children[name] = child
		}
		return dir, nil

	default:
		return nil, fmt.Errorf("unknown node type %q", probe.Type)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Dir.
func (d *Dir) UnmarshalJSON(data []byte) error {
	n, err := decodeNode(data)
	if err != nil {
		return err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return fmt.Errorf("expected directory node, got file")
	}
	*d = *dir
	return nil
}
