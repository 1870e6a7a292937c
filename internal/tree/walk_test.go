package tree

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	path string
	dir  bool
}

// fakeFS builds a full tree of the given depth and branching factor under "/".
func fakeFS(depth, branching int) map[string][]node {
	fs := map[string][]node{}
	var build func(parent string, level int)
	build = func(parent string, level int) {
		if level > depth {
			return
		}
		for i := 0; i < branching; i++ {
			p := fmt.Sprintf("%s/n%d", parent, i)
			if parent == "/" {
				p = fmt.Sprintf("/n%d", i)
			}
			fs[parent] = append(fs[parent], node{path: p, dir: level < depth})
			build(p, level+1)
		}
	}
	build("/", 1)
	return fs
}

func walker(fs map[string][]node, listed *[]string) Walker[node] {
	return Walker[node]{
		List: func(_ context.Context, path string) ([]node, error) {
			*listed = append(*listed, path)
			return fs[path], nil
		},
		Child: func(n node) (string, bool) { return n.path, n.dir },
	}
}

// preorder is the recursive reference traversal.
func preorder(fs map[string][]node, path string) []string {
	var out []string
	for _, n := range fs[path] {
		out = append(out, n.path)
		if n.dir {
			out = append(out, preorder(fs, n.path)...)
		}
	}
	return out
}

func paths(ns []node) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.path
	}
	return out
}

func TestWalk_VisitsEveryNodeOnceInPreorder(t *testing.T) {
	for _, tc := range []struct{ depth, branching int }{{1, 1}, {1, 4}, {2, 3}, {3, 2}, {4, 3}} {
		fs := fakeFS(tc.depth, tc.branching)
		var listed []string

		got, err := walker(fs, &listed).Walk(context.Background(), "/")
		require.NoError(t, err)

		want := 0
		level := 1
		for i := 1; i <= tc.depth; i++ {
			level *= tc.branching
			want += level
		}
		assert.Len(t, got, want, "depth=%d branching=%d", tc.depth, tc.branching)
		assert.Equal(t, preorder(fs, "/"), paths(got))

		seen := map[string]bool{}
		for _, p := range paths(got) {
			assert.False(t, seen[p], "visited twice: %s", p)
			seen[p] = true
		}
	}
}

func TestWalk_ListsParentBeforeChildren(t *testing.T) {
	fs := map[string][]node{
		"/":    {{"/a", true}, {"/b", true}, {"/c.txt", false}},
		"/a":   {{"/a/x", true}, {"/a/y", false}},
		"/a/x": {{"/a/x/z", false}},
		"/b":   {},
	}
	var listed []string
	var visited []string
	w := walker(fs, &listed)
	w.Visit = func(_ context.Context, n node) { visited = append(visited, n.path) }

	got, err := w.Walk(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/a/x", "/a/x/z", "/a/y", "/b", "/c.txt"}, paths(got))
	assert.Equal(t, paths(got), visited)
	assert.Equal(t, []string{"/", "/a", "/a/x", "/b"}, listed)
}

func TestWalk_RootFailure(t *testing.T) {
	w := Walker[node]{
		List:  func(context.Context, string) ([]node, error) { return nil, errors.New("boom") },
		Child: func(n node) (string, bool) { return n.path, n.dir },
	}
	got, err := w.Walk(context.Background(), "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list /")
	assert.Nil(t, got)
}

func TestWalk_SubtreeFailureIsSkipped(t *testing.T) {
	fs := map[string][]node{
		"/":     {{"/bad", true}, {"/good", true}},
		"/good": {{"/good/f", false}},
	}
	var failed []string
	w := Walker[node]{
		List: func(_ context.Context, path string) ([]node, error) {
			if path == "/bad" {
				return nil, errors.New("forbidden")
			}
			return fs[path], nil
		},
		Child:   func(n node) (string, bool) { return n.path, n.dir },
		OnError: func(path string, err error) { failed = append(failed, path) },
	}

	got, err := w.Walk(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bad", "/good", "/good/f"}, paths(got))
	assert.Equal(t, []string{"/bad"}, failed)
}

func TestWalk_EmptyRoot(t *testing.T) {
	var listed []string
	got, err := walker(map[string][]node{}, &listed).Walk(context.Background(), "/")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"/"}, listed)
}

func TestWalk_Cancelled(t *testing.T) {
	fs := fakeFS(3, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := Walker[node]{
		List:  func(_ context.Context, path string) ([]node, error) { return fs[path], nil },
		Child: func(n node) (string, bool) { return n.path, n.dir },
		Visit: func(_ context.Context, n node) {
			if n.path == "/n0/n1" {
				cancel()
			}
		},
	}

	got, err := w.Walk(ctx, "/")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(got), 39)
}
