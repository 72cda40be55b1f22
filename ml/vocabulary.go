package ml

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Normalize returns the canonical form of a categorical value. Training and
// serving must both go through it.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Vocabulary is a frozen bidirectional mapping between normalized category
// strings and dense indices.
type Vocabulary struct {
	classes []string
	index   map[string]int
}

// BuildVocabulary assigns indices in lexicographic order of the distinct
// normalized values, so retraining on the same data reproduces the mapping.
func BuildVocabulary(values []string) (*Vocabulary, error) {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, value := range values {
		norm := Normalize(value)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		classes = append(classes, norm)
	}
	if len(classes) == 0 {
		return nil, errors.New("cannot build vocabulary from empty input")
	}
	sort.Strings(classes)
	return NewVocabulary(classes)
}

// NewVocabulary freezes classes in the given index order. Classes must already
// be normalized and unique.
func NewVocabulary(classes []string) (*Vocabulary, error) {
	if len(classes) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	index := make(map[string]int, len(classes))
	for i, class := range classes {
		if class != Normalize(class) {
			return nil, fmt.Errorf("vocabulary class %q is not normalized", class)
		}
		if _, dup := index[class]; dup {
			return nil, fmt.Errorf("vocabulary class %q is duplicated", class)
		}
		index[class] = i
	}
	return &Vocabulary{
		classes: append([]string(nil), classes...),
		index:   index,
	}, nil
}

// Encode normalizes value and returns its index. ok is false for values not
// seen at training time; there is no fallback index.
func (v *Vocabulary) Encode(value string) (int, bool) {
	idx, ok := v.index[Normalize(value)]
	return idx, ok
}

func (v *Vocabulary) Decode(idx int) (string, bool) {
	if idx < 0 || idx >= len(v.classes) {
		return "", false
	}
	return v.classes[idx], true
}

func (v *Vocabulary) Size() int {
	return len(v.classes)
}

// Classes returns the classes in index order.
func (v *Vocabulary) Classes() []string {
	return append([]string(nil), v.classes...)
}

// Sorted returns the classes sorted for display in a selection control.
func (v *Vocabulary) Sorted() []string {
	sorted := v.Classes()
	sort.Strings(sorted)
	return sorted
}

func (v *Vocabulary) Equal(other *Vocabulary) bool {
	if v == nil || other == nil {
		return v == other
	}
	if len(v.classes) != len(other.classes) {
		return false
	}
	for i := range v.classes {
		if v.classes[i] != other.classes[i] {
			return false
		}
	}
	return true
}
