package value

import "fmt"

// SetAt stores v at pos inside root, creating intermediate maps for key
// segments as needed. Index segments must address an existing element.
// Setting the root position replaces root's contents.
func SetAt(root *Value, pos Position, v *Value) error {
	if root == nil {
		return fmt.Errorf("set %s: nil root", pos)
	}
	if len(pos) == 0 {
		root.Assign(v)
		return nil
	}

	cur := root
	for i, seg := range pos {
		last := i == len(pos)-1
		if idx, ok := seg.Index(); ok {
			l, err := cur.ListRef()
			if err != nil {
				return fmt.Errorf("set %s: %w", pos[:i+1], err)
			}
			if idx < 0 || idx >= len(*l) {
				return fmt.Errorf("set %s: index %d out of range", pos[:i+1], idx)
			}
			if last {
				(*l)[idx] = v
				return nil
			}
			cur = (*l)[idx]
			continue
		}

		if cur.Kind() == KindNull {
			*cur = *EmptyMap()
		}
		m, err := cur.AsMap()
		if err != nil {
			return fmt.Errorf("set %s: %w", pos[:i+1], err)
		}
		if last {
			m.Set(seg.key, v)
			return nil
		}
		next, ok := m.Get(seg.key)
		if !ok {
			next = EmptyMap()
			m.Set(seg.key, next)
		}
		cur = next
	}
	return nil
}

// DeleteAt removes the node at pos. Map entries are deleted and list
// elements are cut out. It reports whether anything was removed.
func DeleteAt(root *Value, pos Position) bool {
	if len(pos) == 0 {
		return false
	}
	parent, ok := Lookup(root, pos.Parent())
	if !ok {
		return false
	}
	seg, _ := pos.Last()
	switch parent.Kind() {
	case KindMap:
		return parent.m.Delete(seg.String())
	case KindList:
		idx, ok := seg.Index()
		if !ok || idx < 0 || idx >= len(parent.list) {
			return false
		}
		parent.list = append(parent.list[:idx], parent.list[idx+1:]...)
		return true
	}
	return false
}
