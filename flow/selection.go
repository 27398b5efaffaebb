package flow

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidSelection = errors.New("invalid selection")

// Catalog maps the choices offered by a select input to their encoded value.
type Catalog map[string]int

// YesNo is the catalog behind the PSH flag selector.
var YesNo = Catalog{"Yes": 1, "No": 0}

// EncodeSelection looks selection up in catalog. The catalog is a closed
// enumeration: anything that is not a key is rejected.
func EncodeSelection(selection string, catalog Catalog) (int, error) {
	v, ok := catalog[selection]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
	}
	return v, nil
}

// Keys returns the catalog keys ordered by descending value, which puts
// "Yes" before "No" as in the form.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c[keys[i]] != c[keys[j]] {
			return c[keys[i]] > c[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
