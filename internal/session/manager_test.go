package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridworld-editor/backend/internal/index"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/gridworld-editor/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *testutil.MockStorage, string) {
	t.Helper()
	store := testutil.NewMockStorage()
	info := store.AddFile("file-1", testutil.SampleGenomeName, []byte(testutil.SampleGenome))
	return NewManager(store, nil), store, info.ID
}

func TestManager_Open(t *testing.T) {
	t.Run("parses the stored genome", func(t *testing.T) {
		m, _, fileID := newTestManager(t)

		sess, err := m.Open(fileID)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, fileID, sess.FileID)
		assert.Equal(t, testutil.SampleGenomeName, sess.FileName)
		assert.Equal(t, models.SessionStatusOpen, sess.Status)
		assert.Equal(t, 2, sess.CellCount)
		assert.Equal(t, 1, sess.DnaCount)
		assert.Equal(t, 3, sess.GeneCount)
	})

	t.Run("unknown file", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		_, err := m.Open("missing")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("parse error opens nothing", func(t *testing.T) {
		m, store, _ := newTestManager(t)
		store.AddFile("broken", "broken.txt", []byte(testutil.BrokenGenome))

		_, err := m.Open("broken")
		require.Error(t, err)

		var pe *models.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 3, pe.Line)
		assert.Empty(t, m.ListSessions())
	})
}

func TestManager_Text(t *testing.T) {
	m, _, fileID := newTestManager(t)
	sess, err := m.Open(fileID)
	require.NoError(t, err)

	text, err := m.Text(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleGenome, text)

	_, err = m.Text("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Update(t *testing.T) {
	t.Run("commits a successful edit", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		updated, err := m.Update(sess.ID, func(dna *models.CreatureDNA) error {
			dna.AddCell(5, 5)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Revision)
		assert.Equal(t, models.SessionStatusDirty, updated.Status)
		assert.Equal(t, 3, updated.CellCount)

		genome, err := m.Genome(sess.ID)
		require.NoError(t, err)
		assert.Len(t, genome.Cells, 3)
	})

	t.Run("edit that would not read back is refused", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error {
			dna.Comments = append(dna.Comments, "//dna: ghost")
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
		assert.ErrorIs(t, err, parser.ErrUnstableGenome)

		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error {
			dna.Cells[0].Decoded.Bias = 64
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)

		got, ok := m.GetSession(sess.ID)
		require.True(t, ok)
		assert.Equal(t, 0, got.Revision)

		text, err := m.Text(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleGenome, text)
	})

	t.Run("failed edit leaves genome untouched", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error {
			dna.Cells = nil
			dna.DNA = nil
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, ok := m.GetSession(sess.ID)
		require.True(t, ok)
		assert.Equal(t, 0, got.Revision)
		assert.Equal(t, models.SessionStatusOpen, got.Status)

		text, err := m.Text(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleGenome, text)
	})

	t.Run("notifies listeners", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		var mu sync.Mutex
		var events []string
		m.OnChange(func(event string, s models.EditSession) {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
		})

		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error { return nil })
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{EventUpdated}, events)
	})
}

func TestManager_ReplaceText(t *testing.T) {
	m, _, fileID := newTestManager(t)
	sess, err := m.Open(fileID)
	require.NoError(t, err)

	t.Run("rejects text that does not parse", func(t *testing.T) {
		_, err := m.ReplaceText(sess.ID, testutil.BrokenGenome)
		var pe *models.ParseError
		require.ErrorAs(t, err, &pe)

		text, err := m.Text(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleGenome, text)
	})

	t.Run("replaces the genome", func(t *testing.T) {
		updated, err := m.ReplaceText(sess.ID, "//name: Lobster\nneuron_properties[2][2] = *A\n")
		require.NoError(t, err)
		assert.Equal(t, 1, updated.CellCount)
		assert.Equal(t, 0, updated.DnaCount)
		assert.Equal(t, models.SessionStatusDirty, updated.Status)
	})
}

func TestManager_Save(t *testing.T) {
	t.Run("writes serialized genome", func(t *testing.T) {
		m, store, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error {
			name := "Hermit"
			dna.Metadata.Name = &name
			return nil
		})
		require.NoError(t, err)

		saved, err := m.Save(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusOpen, saved.Status)
		assert.NotZero(t, saved.SavedAt)

		data, err := store.GetFileData(fileID)
		require.NoError(t, err)
		assert.Contains(t, string(data), "//name: Hermit\n")
	})

	t.Run("write failure keeps session dirty", func(t *testing.T) {
		m, store, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)
		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error { return nil })
		require.NoError(t, err)

		store.FailWrites = true
		_, err = m.Save(sess.ID)
		assert.ErrorIs(t, err, testutil.ErrWriteFailed)

		got, _ := m.GetSession(sess.ID)
		assert.Equal(t, models.SessionStatusDirty, got.Status)
	})

	t.Run("save as binds a new file", func(t *testing.T) {
		m, store, fileID := newTestManager(t)
		sess, err := m.Open(fileID)
		require.NoError(t, err)

		saved, info, err := m.SaveAs(sess.ID, "copy.txt")
		require.NoError(t, err)
		assert.Equal(t, info.ID, saved.FileID)
		assert.Equal(t, "copy.txt", saved.FileName)
		assert.Equal(t, 2, store.GetFileCount())

		data, err := store.GetFileData(info.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleGenome, string(data))
	})
}

func TestManager_Close(t *testing.T) {
	m, _, fileID := newTestManager(t)
	sess, err := m.Open(fileID)
	require.NoError(t, err)

	assert.True(t, m.Close(sess.ID))
	assert.False(t, m.Close(sess.ID))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
}

func TestManager_SessionLimit(t *testing.T) {
	t.Run("evicts least recently used clean session", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		m.SetMaxSessions(2)

		first, err := m.Open(fileID)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		second, err := m.Open(fileID)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		m.TouchSession(first.ID)

		_, err = m.Open(fileID)
		require.NoError(t, err)

		_, ok := m.GetSession(second.ID)
		assert.False(t, ok)
		_, ok = m.GetSession(first.ID)
		assert.True(t, ok)
	})

	t.Run("refuses when every session is dirty", func(t *testing.T) {
		m, _, fileID := newTestManager(t)
		m.SetMaxSessions(1)

		sess, err := m.Open(fileID)
		require.NoError(t, err)
		_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error { return nil })
		require.NoError(t, err)

		_, err = m.Open(fileID)
		assert.ErrorIs(t, err, ErrTooManySessions)
	})
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m, _, fileID := newTestManager(t)
	clean, err := m.Open(fileID)
	require.NoError(t, err)
	dirty, err := m.Open(fileID)
	require.NoError(t, err)
	_, err = m.Update(dirty.ID, func(dna *models.CreatureDNA) error { return nil })
	require.NoError(t, err)

	var mu sync.Mutex
	var closed []string
	m.OnChange(func(event string, s models.EditSession) {
		if event == EventClosed {
			mu.Lock()
			closed = append(closed, s.ID)
			mu.Unlock()
		}
	})

	time.Sleep(5 * time.Millisecond)
	removed := m.CleanupOldSessions(time.Millisecond)

	assert.Equal(t, 1, removed)
	mu.Lock()
	assert.Equal(t, []string{clean.ID}, closed)
	mu.Unlock()
	_, ok := m.GetSession(clean.ID)
	assert.False(t, ok)
	_, ok = m.GetSession(dirty.ID)
	assert.True(t, ok)
}

func TestManager_Search(t *testing.T) {
	m, _, fileID := newTestManager(t)
	sess, err := m.Open(fileID)
	require.NoError(t, err)
	ctx := context.Background()

	hits, err := m.Search(ctx, sess.ID, index.Query{Source: index.SourceGene})
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	_, err = m.Update(sess.ID, func(dna *models.CreatureDNA) error {
		_, ok := dna.DNA[0].Genes.AddGene(0, 7, 7)
		if !ok {
			return ErrInvalidOperation
		}
		return nil
	})
	require.NoError(t, err)

	hits, err = m.Search(ctx, sess.ID, index.Query{Source: index.SourceGene})
	require.NoError(t, err)
	assert.Len(t, hits, 4)

	counts, err := m.TypeCounts(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, counts)

	require.True(t, m.Close(sess.ID))
	_, err = m.Search(ctx, sess.ID, index.Query{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
