package retention

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forgotten(id string, at time.Time) ForgottenNode {
	return ForgottenNode{ID: id, Content: "content " + id, Type: TypeNote, ForgottenAt: at, Reason: "test"}
}

func TestArchiveInsertEvictsOldest(t *testing.T) {
	t1 := testNow.Add(-2 * time.Hour)
	t2 := testNow.Add(-1 * time.Hour)
	a := NewArchive(nil)

	_, err := a.Insert(forgotten("first", t1), 2)
	require.NoError(t, err)
	_, err = a.Insert(forgotten("second", t2), 2)
	require.NoError(t, err)

	purged, err := a.Insert(forgotten("third", testNow), 2)
	require.NoError(t, err)
	require.Len(t, purged, 1)
	assert.Equal(t, "first", purged[0].ID)
	assert.Equal(t, 2, a.Len())
	assert.False(t, a.Contains("first"))

	_, err = a.Remove("first")
	var nae *NotArchivedError
	assert.True(t, errors.As(err, &nae), "a purged node cannot be recalled")
}

func TestArchiveNeverExceedsCapacity(t *testing.T) {
	a := NewArchive(nil)
	for i := 0; i < 25; i++ {
		purged, err := a.Insert(forgotten(fmt.Sprint(i), testNow.Add(time.Duration(i)*time.Minute)), 5)
		require.NoError(t, err)
		if i >= 5 {
			require.Len(t, purged, 1)
			assert.Equal(t, fmt.Sprint(i-5), purged[0].ID)
		}
		assert.LessOrEqual(t, a.Len(), 5)
	}
}

func TestArchiveRejectsDuplicate(t *testing.T) {
	a := NewArchive(nil)
	_, err := a.Insert(forgotten("x", testNow), 3)
	require.NoError(t, err)

	_, err = a.Insert(forgotten("x", testNow.Add(time.Minute)), 3)
	var aae *AlreadyArchivedError
	require.True(t, errors.As(err, &aae))
	assert.Equal(t, "x", aae.ID)
	assert.Equal(t, 1, a.Len())
}

func TestArchiveOrderedByForgottenAt(t *testing.T) {
	a := NewArchive([]ForgottenNode{
		forgotten("late", testNow),
		forgotten("early", testNow.Add(-time.Hour)),
	})
	_, err := a.Insert(forgotten("middle", testNow.Add(-30*time.Minute)), 10)
	require.NoError(t, err)

	var ids []string
	for _, f := range a.List() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"early", "middle", "late"}, ids)
}

func TestArchiveRemoveTwiceFails(t *testing.T) {
	a := NewArchive([]ForgottenNode{forgotten("r", testNow)})
	f, err := a.Remove("r")
	require.NoError(t, err)
	assert.Equal(t, "r", f.ID)

	_, err = a.Remove("r")
	var nae *NotArchivedError
	assert.True(t, errors.As(err, &nae))
}

func TestArchiveTrim(t *testing.T) {
	a := NewArchive(nil)
	for i := 0; i < 4; i++ {
		_, err := a.Insert(forgotten(fmt.Sprint(i), testNow.Add(time.Duration(i)*time.Second)), 10)
		require.NoError(t, err)
	}
	purged := a.Trim(1)
	require.Len(t, purged, 3)
	assert.Equal(t, "0", purged[0].ID)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, "3", a.List()[0].ID)

	assert.Empty(t, a.Trim(1))
}

func TestForgottenNodeRestore(t *testing.T) {
	n := Node{ID: "n", Content: "hello", Type: TypeIdea, Pinned: true, CreatedAt: daysAgo(40), LastTouchedAt: daysAgo(35)}
	f := NewForgottenNode(n, daysAgo(1), "low recent interaction", 0.12)

	restored := f.Restore(testNow)
	assert.Equal(t, n.ID, restored.ID)
	assert.Equal(t, n.Content, restored.Content)
	assert.Equal(t, n.Type, restored.Type)
	assert.True(t, restored.Pinned)
	assert.True(t, restored.CreatedAt.Equal(n.CreatedAt))
	assert.True(t, restored.LastTouchedAt.Equal(testNow))
}

func TestArchiveReset(t *testing.T) {
	a := NewArchive([]ForgottenNode{forgotten("stale", testNow)})

	a.Reset([]ForgottenNode{forgotten("late", testNow), forgotten("early", testNow.Add(-time.Hour))})

	assert.False(t, a.Contains("stale"))
	require.Equal(t, 2, a.Len())
	assert.Equal(t, "early", a.List()[0].ID)
}
