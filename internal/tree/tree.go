package tree

import (
	"slices"
	"strings"
)

// Tree is a workspace rooted at an unnamed directory.
type Tree struct {
	root *Dir
}

// New creates an empty tree: a root directory with name "" and no
// children.
func New() *Tree {
	return &Tree{root: NewDir("")}
}

// Root exposes the root directory. A Tree is not safe for concurrent
// use; each caller owns its tree.
func (t *Tree) Root() *Dir {
	return t.root
}

// splitPath normalizes a path into segments. Empty and "." segments
// are dropped; any ".." segment fails with PATH_ESCAPES_ROOT. This is
// the traversal guard: rejecting ".." outright means no path can
// resolve outside the root, so nothing downstream needs to re-check.
func splitPath(op, p string) ([]string, error) {
	parts := strings.Split(p, "/")
	segs := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, &PathError{Op: op, Path: p, Code: ErrCodeEscapesRoot}
		default:
			segs = append(segs, part)
		}
	}
	return segs, nil
}

// lookup resolves a path to its node.
func (t *Tree) lookup(op, p string) (Node, error) {
	segs, err := splitPath(op, p)
	if err != nil {
		return nil, err
	}

	var current Node = t.root
	for _, seg := range segs {
		dir, ok := current.(*Dir)
		if !ok {
			return nil, &PathError{Op: op, Path: p, Code: ErrCodeNotADirectory}
		}
		child, present := dir.Children[seg]
		if !present {
			return nil, &PathError{Op: op, Path: p, Code: ErrCodeNotFound}
		}
		current = child
	}
	return current, nil
}

// Exists reports whether the path resolves to any node. Traversal
// paths do not exist by definition.
func (t *Tree) Exists(p string) bool {
	_, err := t.lookup("stat", p)
	return err == nil
}

// Mkdir creates the directory and any missing parents. Creating an
// existing directory is a no-op; a file in the way fails with
// NOT_A_DIRECTORY.
func (t *Tree) Mkdir(p string) error {
	segs, err := splitPath("mkdir", p)
	if err != nil {
		return err
	}
	_, err = t.ensureDir("mkdir", p, segs)
	return err
}

// ensureDir walks segs from the root, creating directories as needed.
func (t *Tree) ensureDir(op, p string, segs []string) (*Dir, error) {
	current := t.root
	for _, seg := range segs {
		child, present := current.Children[seg]
		if !present {
			next := NewDir(seg)
			current.Children[seg] = next
			current = next
			continue
		}
		dir, ok := child.(*Dir)
		if !ok {
			return nil, &PathError{Op: op, Path: p, Code: ErrCodeNotADirectory}
		}
		current = dir
	}
	return current, nil
}

// WriteFile writes content at the path, creating missing parent
// directories. modifiedAt is the file's last-modified instant in
// epoch milliseconds; callers supply it from their clock so the tree
// never reads ambient time.
func (t *Tree) WriteFile(p, content string, modifiedAt int64) error {
	segs, err := splitPath("write", p)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return &PathError{Op: "write", Path: p, Code: ErrCodeEmptyPath}
	}

	parent, err := t.ensureDir("write", p, segs[:len(segs)-1])
	if err != nil {
		return err
	}

	name := segs[len(segs)-1]
	if existing, present := parent.Children[name]; present {
		if _, isDir := existing.(*Dir); isDir {
			return &PathError{Op: "write", Path: p, Code: ErrCodeIsADirectory}
		}
	}
	parent.Children[name] = &File{Name: name, Content: content, LastModified: modifiedAt}
	return nil
}

// ReadFile returns the content at the path.
func (t *Tree) ReadFile(p string) (string, error) {
	n, err := t.lookup("read", p)
	if err != nil {
		return "", err
	}
	file, ok := n.(*File)
	if !ok {
		return "", &PathError{Op: "read", Path: p, Code: ErrCodeIsADirectory}
	}
	return file.Content, nil
}

// ReadDir returns the directory's child names sorted
// lexicographically.
func (t *Tree) ReadDir(p string) ([]string, error) {
	n, err := t.lookup("readdir", p)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil, &PathError{Op: "readdir", Path: p, Code: ErrCodeNotADirectory}
	}

	names := make([]string, 0, len(dir.Children))
	for name := range dir.Children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Walk visits every node in deterministic preorder (children sorted
// by name), starting with the root at path "/". Returning an error
// from fn stops the walk.
func (t *Tree) Walk(fn func(path string, n Node) error) error {
	return walk("/", t.root, fn)
}

func walk(path string, n Node, fn func(path string, n Node) error) error {
	if err := fn(path, n); err != nil {
		return err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(dir.Children))
	for name := range dir.Children {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		childPath := path + name
		if _, isDir := dir.Children[name].(*Dir); isDir {
			childPath += "/"
		}
		if err := walk(childPath, dir.Children[name], fn); err != nil {
			return err
		}
	}
	return nil
}

// Files flattens the tree to a path -> content map. Directory paths
// are not included.
func (t *Tree) Files() map[string]string {
	files := make(map[string]string)
	_ = t.Walk(func(path string, n Node) error {
		if f, ok := n.(*File); ok {
			files[path] = f.Content
		}
		return nil
	})
	return files
}
