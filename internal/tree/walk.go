// Package tree walks hierarchical namespaces (DBFS, the workspace tree)
// that are listed one directory at a time.
package tree

import (
	"context"
	"fmt"
	"slices"
)

// Walker enumerates a tree depth first. Nodes are emitted in pre-order:
// a directory comes before its children, siblings in listing order.
type Walker[T any] struct {
	// List returns the children of the directory at path.
	List func(ctx context.Context, path string) ([]T, error)
	// Child reports whether n is a directory to descend into, and its path.
	Child func(n T) (path string, ok bool)
	// Visit, if set, is called for each node before its children are listed.
	Visit func(ctx context.Context, n T)
	// OnError, if set, receives listing failures below the root. The
	// failed subtree is skipped.
	OnError func(path string, err error)
}

// Walk lists root and every directory below it and returns all discovered
// nodes. The root itself is not part of the result. A failure to list root
// is returned.
func (w Walker[T]) Walk(ctx context.Context, root string) ([]T, error) {
	children, err := w.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	var (
		out   []T
		stack = reversed(children)
	)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out = append(out, n)
		if w.Visit != nil {
			w.Visit(ctx, n)
		}

		path, ok := w.Child(n)
		if !ok {
			continue
		}
		children, err := w.List(ctx, path)
		if err != nil {
			if w.OnError != nil {
				w.OnError(path, err)
			}
			continue
		}
		stack = append(stack, reversed(children)...)
	}
	return out, nil
}

func reversed[T any](s []T) []T {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}
