package subscriber

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMirrorCopiesAndRemoves(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("B"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "old.txt"), []byte("old"), 0644))

	m, err := NewMirror(src, dst, false)
	require.NoError(t, err)

	err = m.Callback(context.Background(), []model.ChangeEvent{
		{Kind: model.EventCreate, Path: filepath.Join(src, "a.txt")},
		{Kind: model.EventCreate, Path: filepath.Join(src, "sub")},
		{Kind: model.EventCreate, Path: filepath.Join(src, "sub", "b.txt")},
		{Kind: model.EventChange, Path: filepath.Join(src, "a.txt")},
		{Kind: model.EventDelete, Path: filepath.Join(src, "old.txt")},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "A", readFile(t, filepath.Join(dst, "a.txt")))
	assert.Equal(t, "B", readFile(t, filepath.Join(dst, "sub", "b.txt")))
	_, err = os.Stat(filepath.Join(dst, "old.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMirrorVanishedFileIsRemoved(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "tmp.txt"), []byte("stale"), 0644))

	m, err := NewMirror(src, dst, false)
	require.NoError(t, err)

	err = m.Callback(context.Background(), []model.ChangeEvent{
		{Kind: model.EventCreate, Path: filepath.Join(src, "tmp.txt")},
	}, nil)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dst, "tmp.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMirrorDstParamOverride(t *testing.T) {
	src, dst, alt := t.TempDir(), t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("F"), 0644))

	m, err := NewMirror(src, dst, true)
	require.NoError(t, err)

	err = m.Callback(context.Background(), []model.ChangeEvent{
		{Kind: model.EventChange, Path: filepath.Join(src, "f.txt")},
	}, aggregator.Params{"dst": alt})
	require.NoError(t, err)

	assert.Equal(t, "F", readFile(t, filepath.Join(alt, "f.txt")))
	_, err = os.Stat(filepath.Join(dst, "f.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMirrorCancelledContext(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	m, err := NewMirror(src, dst, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = m.Callback(ctx, []model.ChangeEvent{
		{Kind: model.EventChange, Path: filepath.Join(src, "f.txt")},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMirrorToDst(t *testing.T) {
	m := &Mirror{src: "/src"}
	assert.Equal(t, "/dst/a/b.txt", m.toDst("/src/a/b.txt", "/dst"))
	assert.Equal(t, "/dst/outside.txt", m.toDst("/elsewhere/outside.txt", "/dst"))
}
