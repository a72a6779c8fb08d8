package storage

import (
	"testing"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/models"
	"sharednotes/pkg/utils"
)

func randomNotes(n int) []*models.Note {
	fake := faker.New()
	tiers := []models.Permission{models.PermissionOwner, models.PermissionWrite, models.PermissionRead, models.PermissionShare}

	notes := make([]*models.Note, 0, n)
	for i := 0; i < n; i++ {
		notes = append(notes, &models.Note{
			ID:         utils.NewID(),
			Title:      fake.Lorem().Sentence(3),
			Body:       fake.Lorem().Paragraph(2),
			Permission: tiers[i%len(tiers)],
		})
	}
	return notes
}

func TestPartitionIsExact(t *testing.T) {
	s := NewNoteStore()
	s.Replace(randomNotes(23))

	mine := s.MyNotes()
	shared := s.SharedNotes()
	assert.Equal(t, s.Len(), len(mine)+len(shared))

	seen := make(map[string]bool)
	for _, n := range mine {
		assert.Equal(t, models.PermissionOwner, n.Permission)
		seen[n.ID] = true
	}
	for _, n := range shared {
		assert.NotEqual(t, models.PermissionOwner, n.Permission)
		assert.False(t, seen[n.ID], "note in both partitions")
		seen[n.ID] = true
	}
	assert.Len(t, seen, 23)
}

func TestPartitionFollowsMutations(t *testing.T) {
	s := NewNoteStore()
	notes := randomNotes(4)
	s.Replace(notes)
	require.Len(t, s.MyNotes(), 1)

	s.Add(&models.Note{ID: utils.NewID(), Title: "new", Permission: models.PermissionOwner})
	assert.Len(t, s.MyNotes(), 2)

	require.True(t, s.Remove(notes[1].ID))
	assert.Len(t, s.SharedNotes(), 2)
	assert.False(t, s.Remove(notes[1].ID))
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewNoteStore()
	n := &models.Note{ID: "a", Title: "one", Permission: models.PermissionOwner}
	s.Add(n)
	n.Title = "changed outside"

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", got.Title)

	got.Title = "changed again"
	again, _ := s.Get("a")
	assert.Equal(t, "one", again.Title)
}

func TestApplyAndOrder(t *testing.T) {
	s := NewNoteStore()
	s.Replace([]*models.Note{
		{ID: "b", Title: "B", Permission: models.PermissionRead},
		{ID: "a", Title: "A", Permission: models.PermissionOwner},
	})
	s.Add(&models.Note{ID: "c", Title: "C", Permission: models.PermissionOwner})

	require.True(t, s.Apply("a", "A2", "body"))
	assert.False(t, s.Apply("zzz", "x", "y"))

	all := s.GetAllNotes()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "A2", all[1].Title)

	assert.Len(t, s.SearchNotes("a2"), 1)
	s.ClearAllNotes()
	assert.Equal(t, 0, s.Len())
}
