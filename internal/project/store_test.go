package project

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "projects.toml"))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Save("alice", "intro", []string{"a", "b"}, []int{1, 6})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice", p.UserID)

	got, err := s.Get("alice", p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "intro", got.Name)
	assert.Equal(t, []string{"a", "b"}, got.OverlayIDs)
	assert.Equal(t, []int{1, 6}, got.Positions)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	g, err := got.Assignment()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestGetForeignProject(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Save("alice", "intro", []string{"a"}, []int{1})
	require.NoError(t, err)

	got, err := s.Get("bob", p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get("", p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"first", "second", "third"} {
		_, err := s.Save("alice", name, nil, nil)
		require.NoError(t, err)
	}
	_, err := s.Save("bob", "other", nil, nil)
	require.NoError(t, err)

	list, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "second", list[1].Name)
	assert.Equal(t, "first", list[2].Name)

	list, err = s.List("")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListMissingFile(t *testing.T) {
	s := newTestStore(t)
	list, err := s.List("alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Save("alice", "intro", []string{"a"}, []int{1})
	require.NoError(t, err)

	require.NoError(t, s.Update("alice", p.ID, "renamed", []string{"a", "b"}, []int{6, 1}))

	got, err := s.Get("alice", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []int{6, 1}, got.Positions)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	assert.ErrorIs(t, s.Update("bob", p.ID, "x", nil, nil), ErrNotFound)
	assert.ErrorIs(t, s.Update("alice", "missing", "x", nil, nil), ErrNotFound)
	assert.ErrorIs(t, s.Update("", p.ID, "x", nil, nil), ErrNotAuthenticated)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	keep, err := s.Save("alice", "keep", nil, nil)
	require.NoError(t, err)
	drop, err := s.Save("alice", "drop", nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete("bob", drop.ID), ErrNotFound)
	assert.ErrorIs(t, s.Delete("", drop.ID), ErrNotAuthenticated)
	require.NoError(t, s.Delete("alice", drop.ID))
	assert.ErrorIs(t, s.Delete("alice", drop.ID), ErrNotFound)

	list, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestSaveValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save("", "x", nil, nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.EqualError(t, err, "Not authenticated")

	_, err = s.Save("alice", "x", []string{"a", "b"}, []int{1})
	assert.Error(t, err)

	_, err = s.Save("alice", "x", []string{"a"}, []int{8})
	assert.Error(t, err)

	_, err = s.Save("alice", "x", []string{"a"}, []int{-1})
	assert.Error(t, err)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("projects = ["), 0o600))

	_, err := s.List("alice")
	assert.ErrorContains(t, err, "failed to parse project file")
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob", "carol"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := s.Save(user, "p", []string{"a"}, []int{0})
				assert.NoError(t, err)
			}(user)
		}
	}
	wg.Wait()

	for _, user := range []string{"alice", "bob", "carol"} {
		list, err := s.List(user)
		require.NoError(t, err)
		assert.Len(t, list, 5)
	}
}
