package paperstore

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aihub/paperqa-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "papers.json"))
	require.NoError(t, err)
	return store
}

func TestFileStoreEmpty(t *testing.T) {
	store := newTestFileStore(t)

	papers, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, papers)

	got, err := store.Get("p_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreUpsertInsertAndReplace(t *testing.T) {
	store := newTestFileStore(t)

	require.NoError(t, store.Upsert(models.Paper{PaperID: "p_a", Title: "A", Status: models.PaperStatusProcessing}))
	require.NoError(t, store.Upsert(models.Paper{PaperID: "p_b", Title: "B", Status: models.PaperStatusProcessing}))

	// 新记录插入在最前
	papers, err := store.List()
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "p_b", papers[0].PaperID)

	// 同ID替换而非追加
	require.NoError(t, store.Upsert(models.Paper{PaperID: "p_a", Title: "A", Status: models.PaperStatusIndexed, ChunkCount: 12}))
	papers, err = store.List()
	require.NoError(t, err)
	require.Len(t, papers, 2)

	got, err := store.Get("p_a")
	require.NoError(t, err)
	assert.Equal(t, models.PaperStatusIndexed, got.Status)
	assert.Equal(t, 12, got.ChunkCount)
}

func TestFileStoreRejectsInvalidStatus(t *testing.T) {
	store := newTestFileStore(t)
	err := store.Upsert(models.Paper{PaperID: "p_x", Status: "uploading"})
	assert.Error(t, err)
}

func TestFileStoreConcurrentUpserts(t *testing.T) {
	store := newTestFileStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paper := models.Paper{
				PaperID: fmt.Sprintf("p_%02d", i),
				Title:   fmt.Sprintf("paper %d", i),
				Status:  models.PaperStatusProcessing,
			}
			assert.NoError(t, store.Upsert(paper))
		}(i)
	}
	wg.Wait()

	// 互斥锁串行化读-改-写，不应丢失任何记录
	papers, err := store.List()
	require.NoError(t, err)
	assert.Len(t, papers, 20)
}
