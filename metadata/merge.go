package metadata

// Merge returns a new tree combining base and patch. For every key in patch:
// when both sides hold map nodes the merge recurses, otherwise the patch
// value wins outright. Lists are replaced wholesale, never merged element
// by element. Keys present only in base are preserved. Neither input is
// mutated.
func Merge(base, patch Tree) Tree {
	merged := make(Tree, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v.clone()
	}
	for k, pv := range patch {
		bv, ok := merged[k]
		if ok && bv.kind == KindMap && pv.kind == KindMap {
			merged[k] = Map(Merge(bv.m, pv.m))
			continue
		}
		merged[k] = pv.clone()
	}
	return merged
}

func (v Value) clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.l))
		for i, item := range v.l {
			items[i] = item.clone()
		}
		return Value{kind: KindList, l: items}
	case KindMap:
		tree := make(Tree, len(v.m))
		for k, item := range v.m {
			tree[k] = item.clone()
		}
		return Value{kind: KindMap, m: tree}
	default:
		return v
	}
}
