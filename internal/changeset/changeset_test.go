// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package changeset

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	staged, modified, untracked []string
	err                         error
}

func (f fakeSource) Changes(context.Context) ([]string, []string, []string, error) {
	return f.staged, f.modified, f.untracked, f.err
}

func TestResolve_ExampleFromDocs(t *testing.T) {
	src := fakeSource{
		staged:    []string{"a.txt"},
		modified:  []string{"b.txt"},
		untracked: []string{"a.txt", "c.txt"},
	}

	cs, err := Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, cs.Files())
	assert.Len(t, cs.Files(), 3)
	assert.False(t, cs.Empty())
}

func TestResolve_PropagatesQueryError(t *testing.T) {
	boom := errors.New("not a git repository")

	_, err := Resolve(context.Background(), fakeSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestChangeSet_Empty(t *testing.T) {
	assert.True(t, ChangeSet{}.Empty())
	assert.True(t, ChangeSet{Staged: []string{"", "  "}}.Empty())
	assert.False(t, ChangeSet{Untracked: []string{"x"}}.Empty())
}

// The union must equal the set union of the inputs regardless of which
// listing a path came from.
func TestUnion_IsOrderIndependentSet(t *testing.T) {
	a := []string{"x.go", "dir/y.go", "shared.txt"}
	b := []string{"shared.txt", "z.md"}
	c := []string{"z.md", "x.go", "new/file"}

	perms := [][3][]string{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	want := []string{"dir/y.go", "new/file", "shared.txt", "x.go", "z.md"}
	for _, p := range perms {
		got := Union(p[0], p[1], p[2])
		sort.Strings(got)
		assert.Equal(t, want, got)
	}
}

func TestUnion_StableOrder(t *testing.T) {
	got := Union([]string{"b", "a"}, []string{"c", "a"}, []string{"b", "d"})
	assert.Equal(t, []string{"b", "a", "c", "d"}, got)
}

func TestUnion_NormalizesEquivalentPaths(t *testing.T) {
	decomposed := "cafe\u0301.txt"
	composed := "caf\u00e9.txt"

	got := Union(
		[]string{"./src/main.go", decomposed},
		[]string{"src//main.go", composed},
	)
	assert.Equal(t, []string{"src/main.go", decomposed}, got)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{".", ""},
		{"  a.txt  ", "a.txt"},
		{"a/./b/../c.txt", "a/c.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("caf\u00e9.txt"), Key("cafe\u0301.txt"))
	assert.Equal(t, "a/c.txt", Key(" a/./b/../c.txt "))
	assert.Equal(t, "", Key("."))
}
