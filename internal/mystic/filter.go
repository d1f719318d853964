package mystic

// Filter selects devices or zones by name.
type Filter interface {
	Matches(name string) bool
}

// AllFilter matches every name.
type AllFilter struct{}

func (AllFilter) Matches(string) bool { return true }

// NameFilter is an allow-list of names. An empty list matches everything.
type NameFilter []string

func (f NameFilter) Matches(name string) bool {
	if len(f) == 0 {
		return true
	}
	for _, n := range f {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns a NameFilter over names.
func Names(names ...string) Filter {
	return NameFilter(names)
}

func matches(f Filter, name string) bool {
	return f == nil || f.Matches(name)
}
