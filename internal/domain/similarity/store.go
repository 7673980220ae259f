package similarity

// Store is the immutable bundle of the property index and its three
// similarity matrices. A *Store is safe for concurrent use without locking;
// nothing mutates it after Load returns.
type Store struct {
	names    []string
	position map[string]int
	matrices Matrices
}

// Load validates and copies the matrices and index into a Store.
//
// Every matrix must be N×N where N is len(index). The index must not repeat a
// name. Load checks shape before duplicates, and checks matrices in signal
// order, so the reported error is deterministic.
func Load(m Matrices, index []string) (*Store, error) {
	n := len(index)
	for _, sig := range Signals {
		mat := m.Get(sig)
		if len(mat) != n {
			return nil, shapeMismatch(sig.String(), -1, len(mat), n)
		}
		for i, row := range mat {
			if len(row) != n {
				return nil, shapeMismatch(sig.String(), i, len(row), n)
			}
		}
	}

	position := make(map[string]int, n)
	for i, name := range index {
		if first, dup := position[name]; dup {
			return nil, duplicateIndex(name, first, i)
		}
		position[name] = i
	}

	return &Store{
		names:    append([]string(nil), index...),
		position: position,
		matrices: Matrices{
			Facilities: m.Facilities.clone(),
			Price:      m.Price.clone(),
			Location:   m.Location.clone(),
		},
	}, nil
}

// PositionOf returns the row/column of name.
func (s *Store) PositionOf(name string) (int, error) {
	i, ok := s.position[name]
	if !ok {
		return 0, unknownProperty(name)
	}
	return i, nil
}

// Size returns N.
func (s *Store) Size() int { return len(s.names) }

// Names returns a copy of the index in canonical order.
func (s *Store) Names() []string { return append([]string(nil), s.names...) }

// Contains reports whether name is in the index.
func (s *Store) Contains(name string) bool {
	_, ok := s.position[name]
	return ok
}

//Personal.AI order the ending
