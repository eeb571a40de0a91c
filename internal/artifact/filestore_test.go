package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"garment-storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "http://localhost:8080/")
	require.NoError(t, err)

	up := domain.Upload{Name: "Proof.JPG", Data: []byte("transfer receipt")}
	first, err := s.Save(context.Background(), "proof", up)
	require.NoError(t, err)
	second, err := s.Save(context.Background(), "proof", up)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, up.SHA256(), first.SHA256)
	assert.True(t, strings.HasPrefix(first.URL, "http://localhost:8080/files/proof-"))
	assert.True(t, strings.HasSuffix(first.URL, ".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(first.URL)))
	require.NoError(t, err)
	assert.Equal(t, up.Data, data)
}

func TestSaveHonorsCancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Save(ctx, "delivery", domain.Upload{Data: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentSavesOfSameContent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "")
	require.NoError(t, err)
	up := domain.Upload{Name: "photo.png", Data: []byte("parcel at the door")}

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Save(context.Background(), "delivery", up)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}
