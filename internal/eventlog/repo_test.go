package eventlog

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSRepoReplaceFile(t *testing.T) {
	root := t.TempDir()
	repo := FSRepo{Root: root}

	require.NoError(t, repo.ReplaceFile("a/b/log.jsonl", []byte("one\n")))
	require.NoError(t, repo.ReplaceFile("a/b/log.jsonl", []byte("one\ntwo\n")))

	got, err := repo.ReadFile("a/b/log.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestFSRepoReplaceFileCleansUpOnFailure(t *testing.T) {
	root := t.TempDir()
	repo := FSRepo{Root: root}
	// The target is a directory, so the final rename fails.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "events", "x.jsonl", "inner"), 0o755))

	err := repo.ReplaceFile("events/x.jsonl", []byte("data\n"))
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "events"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "x.jsonl", entries[0].Name())
}

func TestFSRepoList(t *testing.T) {
	root := t.TempDir()
	repo := FSRepo{Root: root}

	names, err := repo.List("missing")
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{"b.jsonl", "a.jsonl", ".gitattributes"} {
		require.NoError(t, repo.ReplaceFile("events/"+name, nil))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "events", "sub"), 0o755))

	names, err = repo.List("events")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, names)
}

func TestFSRepoReadMissing(t *testing.T) {
	_, err := FSRepo{Root: t.TempDir()}.ReadFile("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemRepo(t *testing.T) {
	repo := NewMemRepo()

	_, err := repo.ReadFile("events/a.jsonl")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, repo.ReplaceFile("events/b.jsonl", []byte("b")))
	require.NoError(t, repo.ReplaceFile("./events/a.jsonl", []byte("a")))
	require.NoError(t, repo.ReplaceFile("events/.gitattributes", []byte("x")))
	require.NoError(t, repo.ReplaceFile("events/nested/c.jsonl", []byte("c")))

	names, err := repo.List("events")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, names)

	got, err := repo.ReadFile("events/a.jsonl")
	require.NoError(t, err)
	got[0] = 'z'
	again, _ := repo.ReadFile("events/a.jsonl")
	assert.Equal(t, "a", string(again), "returned bytes are a copy")
}
