package fakebackend

import (
	"strings"

	"github.com/jaswdr/faker"

	"sharednotes/pkg/models"
)

// LoremNote returns a note with generated title and body
func LoremNote(f faker.Faker) models.NewNote {
	title := strings.TrimSuffix(f.Lorem().Sentence(4), ".")
	paragraphs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		paragraphs = append(paragraphs, f.Lorem().Paragraph(2))
	}
	return models.NewNote{
		Title: title,
		Body:  strings.Join(paragraphs, "\n\n"),
	}
}

// SeedDemo creates a user owning n generated notes, plus a second user who
// shares one of them for reading when n > 0
func (s *Server) SeedDemo(username, email, password string, n int) *User {
	f := faker.New()
	u := s.SeedUser(username, email, password)

	var first string
	for i := 0; i < n; i++ {
		note := LoremNote(f)
		id := s.SeedNote(u.ID, note.Title, note.Body)
		if first == "" {
			first = id
		}
	}

	if first != "" {
		peer := s.SeedUser(strings.ToLower(f.Person().FirstName()), f.Internet().Email(), password)
		s.Grant(first, peer.ID, models.PermissionRead)
		shared := LoremNote(f)
		s.Grant(s.SeedNote(peer.ID, shared.Title, shared.Body), u.ID, models.PermissionWrite)
	}
	return u
}
