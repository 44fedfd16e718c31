package file

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriter_CreatesParentsAndTruncates(t *testing.T) {
	svc := NewFileService()
	dst := filepath.Join(t.TempDir(), "nested", "dir", "out.bin")

	w, err := svc.CreateWriter(dst)
	require.NoError(t, err)
	for _, b := range []byte("hello world") {
		require.NoError(t, w.WriteByte(b))
	}
	assert.Equal(t, int64(11), w.Written())
	assert.Equal(t, dst, w.Path())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	w, err = svc.CreateWriter(dst)
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestOpenReader(t *testing.T) {
	svc := NewFileService()
	path := filepath.Join(t.TempDir(), "file1.txt")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 255}, 0o644))

	r, err := svc.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(3), r.Size())
	assert.Equal(t, "file1.txt", r.Name())

	var got []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, []byte{0, 1, 255}, got)
}

func TestOpenReader_Missing(t *testing.T) {
	_, err := NewFileService().OpenReader(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
