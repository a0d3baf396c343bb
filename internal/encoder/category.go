package encoder

import (
	"sort"

	"github.com/campus-safety/kestrel/internal/domain"
)

// CategoryEncoder is the fitted, stable label-to-integer mapping for the
// crime category feature. It is fitted once on the training set, stored in
// the model bundle, and never refit at inference time. Fields are exported
// for gob serialization.
type CategoryEncoder struct {
	// Classes holds the distinct labels in encoding order.
	Classes []string

	// Mapping is the label -> integer code table.
	Mapping map[string]int
}

// FitCategories builds a category encoder from the dataset. Labels are
// sorted before codes are assigned so the mapping does not depend on row
// order. A missing label at fit time counts as OTHER.
func FitCategories(ds *domain.Dataset) *CategoryEncoder {
	seen := make(map[string]bool)
	for _, inc := range ds.Incidents {
		label := inc.Category
		if label == "" {
			label = domain.CategoryOther
		}
		seen[label] = true
	}

	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	mapping := make(map[string]int, len(classes))
	for i, label := range classes {
		mapping[label] = i
	}

	return &CategoryEncoder{Classes: classes, Mapping: mapping}
}

// Encode returns the integer code for a label. Unknown labels degrade to
// the OTHER bucket; when the training set had no OTHER bucket either, the
// code is 0.
func (c *CategoryEncoder) Encode(label string) int {
	if code, ok := c.Mapping[label]; ok {
		return code
	}
	if code, ok := c.Mapping[domain.CategoryOther]; ok {
		return code
	}
	return 0
}
