package origins

// A Set represents a set of normalized origins.
// Because the null origin is a member only if it was explicitly added,
// policies never authorize it by accident.
type Set map[Origin]struct{}

// NewSet returns a Set that contains all of os but no other origins.
func NewSet(os ...Origin) Set {
	set := make(Set, len(os))
	for _, o := range os {
		set.Add(o)
	}
	return set
}

// Add adds o to set.
func (set Set) Add(o Origin) {
	set[o] = struct{}{}
}

// Contains reports whether o is an element of set.
func (set Set) Contains(o Origin) bool {
	_, found := set[o]
	return found
}

// Size returns the cardinality of set.
func (set Set) Size() int {
	return len(set)
}
