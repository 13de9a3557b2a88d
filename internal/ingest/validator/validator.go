// Package validator checks submitted documents against size and shape
// constraints, returning per-field error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/proplex/searchd/pkg/search"
)

const (
	maxIDLength       = 255
	maxTitleLength    = 1024
	maxContentLength  = 1048576
	maxCategoryLength = 255
	maxTags           = 64
	maxTagLength      = 128
	maxMetadataKeys   = 64
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument checks a submitted document. ID and title are required;
// everything else is bounded but optional.
func ValidateDocument(doc *search.Document) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		errs["id"] = "id is required"
	} else if len(id) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}

	if len(doc.Content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentLength)
	}

	if len(doc.Category) > maxCategoryLength {
		errs["category"] = fmt.Sprintf("category must be at most %d characters", maxCategoryLength)
	}

	if len(doc.Tags) > maxTags {
		errs["tags"] = fmt.Sprintf("at most %d tags allowed", maxTags)
	} else {
		for i, tag := range doc.Tags {
			if strings.TrimSpace(tag) == "" {
				errs["tags"] = fmt.Sprintf("tag %d is empty", i)
				break
			}
			if len(tag) > maxTagLength {
				errs["tags"] = fmt.Sprintf("tag %d exceeds %d characters", i, maxTagLength)
				break
			}
		}
	}

	if len(doc.Metadata) > maxMetadataKeys {
		errs["metadata"] = fmt.Sprintf("at most %d metadata entries allowed", maxMetadataKeys)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
