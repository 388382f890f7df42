package spool

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestSpool_SaveReadRelease(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "nested"), logger.NewWithWriter(&bytes.Buffer{}, "error", "json"))

	f, err := s.Save(strings.NewReader("video bytes"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), f.Size)
	assert.True(t, strings.HasPrefix(filepath.Base(f.Path), "upload-"))

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []byte("video bytes"), data)

	f.Release()
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSpool_FailedCopyLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, logger.NewWithWriter(&bytes.Buffer{}, "error", "json"))

	_, err := s.Save(failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFile_ReleaseTwiceIsQuiet(t *testing.T) {
	var logs bytes.Buffer
	s := New(t.TempDir(), logger.NewWithWriter(&logs, "warn", "json"))

	f, err := s.Save(strings.NewReader("x"))
	require.NoError(t, err)

	f.Release()
	f.Release()
	assert.Zero(t, logs.Len())
}
