package symbol

// Walk calls fn for every symbol reachable from s. Composite symbols and
// actions are visited once even when the grammar is cyclic; terminals are
// visited at every occurrence. Returning false from fn skips the children
// of that symbol.
func Walk(s Symbol, fn func(Symbol) bool) {
	seen := make(map[Symbol]bool)

	var visit func(Symbol)
	visit = func(s Symbol) {
		if s == nil {
			return
		}
		if _, terminal := s.(Terminal); !terminal {
			if seen[s] {
				return
			}
			seen[s] = true
		}
		if !fn(s) {
			return
		}
		for _, child := range children(s) {
			visit(child)
		}
	}
	visit(s)
}

// children returns the direct children of s in execution order.
func children(s Symbol) []Symbol {
	switch sym := s.(type) {
	case *Seq:
		return sym.Execution()
	case *Alt:
		return sym.Branches
	case *Repeat:
		if sym.Count != nil {
			return []Symbol{sym.Count, sym.Body}
		}
		return []Symbol{sym.Body}
	case *Resolve:
		return []Symbol{sym.Base}
	case *UnionAdjust:
		return []Symbol{sym.Inner}
	case *Skip:
		return []Symbol{sym.Inner}
	}
	return nil
}

// Errors collects the deferred error symbols reachable from s.
func Errors(s Symbol) []*Error {
	var errs []*Error
	Walk(s, func(s Symbol) bool {
		if e, ok := s.(*Error); ok {
			errs = append(errs, e)
		}
		return true
	})
	return errs
}

// Incomplete reports whether any reachable Seq still has an unset slot.
func Incomplete(s Symbol) bool {
	incomplete := false
	Walk(s, func(s Symbol) bool {
		if seq, ok := s.(*Seq); ok {
			for _, child := range seq.Children {
				if child == nil {
					incomplete = true
				}
			}
		}
		return !incomplete
	})
	return incomplete
}
