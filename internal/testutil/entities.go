// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"github.com/expreql/expreql/schema"
)

// Entities bundles the fixture registry with its entity types.
type Entities struct {
	Registry    *schema.Registry
	Exercise    *schema.EntityType
	Question    *schema.EntityType
	Fulfillment *schema.EntityType
	Response    *schema.EntityType
	Author      *schema.EntityType
	Biography   *schema.EntityType
	Book        *schema.EntityType
}

// NewEntities registers the exercise/questionnaire and library fixtures.
//
//	Exercise -has_many-> Question    (questions.exercises_id)
//	Exercise -has_many-> Fulfillment (fulfillments.exercises_id)
//	Fulfillment -has_many-> Response (responses.fulfillments_id)
//	Response -belongs_to-> Question  (responses.questions_id)
//	Author -has_one-> Biography      (biographies.authors_id)
//	Author -has_many-> Book          (books.authors_id)
//	Book -belongs_to-> Author        (books.authors_id)
func NewEntities() *Entities {
	reg := schema.NewRegistry()
	e := &Entities{Registry: reg}

	e.Exercise = reg.MustRegister(schema.Definition{
		Name:       "Exercise",
		Table:      "exercises",
		PrimaryKey: "id",
		Fields:     []string{"id", "title", "state"},
		HasMany: map[string]string{
			"Question":    "exercises_id",
			"Fulfillment": "exercises_id",
		},
	})
	e.Question = reg.MustRegister(schema.Definition{
		Name:       "Question",
		Table:      "questions",
		PrimaryKey: "id",
		Fields:     []string{"id", "label", "type", "exercises_id"},
	})
	e.Fulfillment = reg.MustRegister(schema.Definition{
		Name:       "Fulfillment",
		Table:      "fulfillments",
		PrimaryKey: "id",
		Fields:     []string{"id", "created_at", "exercises_id"},
		HasMany: map[string]string{
			"Response": "fulfillments_id",
		},
	})
	e.Response = reg.MustRegister(schema.Definition{
		Name:       "Response",
		Table:      "responses",
		PrimaryKey: "id",
		Fields:     []string{"id", "text", "questions_id", "fulfillments_id"},
		BelongsTo: map[string]string{
			"Question": "questions_id",
		},
	})
	e.Author = reg.MustRegister(schema.Definition{
		Name:       "Author",
		Table:      "authors",
		PrimaryKey: "id",
		Fields:     []string{"id", "name"},
		HasOne: map[string]string{
			"Biography": "authors_id",
		},
		HasMany: map[string]string{
			"Book": "authors_id",
		},
	})
	e.Biography = reg.MustRegister(schema.Definition{
		Name:       "Biography",
		Table:      "biographies",
		PrimaryKey: "id",
		Fields:     []string{"id", "summary", "authors_id"},
	})
	e.Book = reg.MustRegister(schema.Definition{
		Name:       "Book",
		Table:      "books",
		PrimaryKey: "id",
		Fields:     []string{"id", "title", "isbn", "authors_id"},
		BelongsTo: map[string]string{
			"Author": "authors_id",
		},
	})

	if err := reg.Validate(); err != nil {
		panic(err)
	}
	return e
}
