package analysis

// Universe is a predefined profile a person can be matched to.
type Universe struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Grade       string         `json:"grade,omitempty" yaml:"grade"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Types       []UniverseType `json:"types,omitempty" yaml:"types"`
}

// UniverseType is one scored facet of a Universe.
type UniverseType struct {
	Name        string  `json:"name" yaml:"name"`
	Score       float64 `json:"score" yaml:"score"`
	Description string  `json:"description,omitempty" yaml:"description"`
}

// UniverseMatcher picks the universe that best fits ranked categories.
type UniverseMatcher interface {
	Match(categories []CategoryScore, universes []Universe) (Universe, bool)
}

// FirstMatcher returns the first candidate without comparing anything.
// It stands in until a real matching criterion exists.
type FirstMatcher struct{}

func (FirstMatcher) Match(_ []CategoryScore, universes []Universe) (Universe, bool) {
	if len(universes) == 0 {
		return Universe{}, false
	}
	return universes[0], true
}
