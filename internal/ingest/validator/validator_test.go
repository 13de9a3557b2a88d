package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/proplex/searchd/pkg/search"
)

func validDoc() search.Document {
	return search.Document{
		ID:       "doc-1",
		Title:    "A Title",
		Content:  "some content",
		Tags:     []string{"one", "two"},
		Category: "general",
	}
}

func TestValidDocumentPasses(t *testing.T) {
	doc := validDoc()
	if err := ValidateDocument(&doc); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*search.Document)
		field  string
	}{
		{"missing id", func(d *search.Document) { d.ID = "  " }, "id"},
		{"long id", func(d *search.Document) { d.ID = strings.Repeat("x", 256) }, "id"},
		{"missing title", func(d *search.Document) { d.Title = "" }, "title"},
		{"long title", func(d *search.Document) { d.Title = strings.Repeat("x", 1025) }, "title"},
		{"long content", func(d *search.Document) { d.Content = strings.Repeat("x", 1048577) }, "content"},
		{"long category", func(d *search.Document) { d.Category = strings.Repeat("x", 256) }, "category"},
		{"empty tag", func(d *search.Document) { d.Tags = []string{"ok", " "} }, "tags"},
		{"long tag", func(d *search.Document) { d.Tags = []string{strings.Repeat("x", 129)} }, "tags"},
		{"too many tags", func(d *search.Document) {
			d.Tags = make([]string, 65)
			for i := range d.Tags {
				d.Tags[i] = "t"
			}
		}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(&doc)
			err := ValidateDocument(&doc)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if _, ok := vErr.Fields[tt.field]; !ok {
				t.Fatalf("expected error on field %q, got %v", tt.field, vErr.Fields)
			}
		})
	}
}

func TestMultipleFieldsReported(t *testing.T) {
	doc := search.Document{}
	err := ValidateDocument(&doc)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(vErr.Fields) != 2 {
		t.Fatalf("want errors on id and title, got %v", vErr.Fields)
	}
}
