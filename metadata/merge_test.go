package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeRecursesIntoMaps(t *testing.T) {
	base := Tree{
		"a": Map(Tree{
			"x": Number(0),
			"y": Number(2),
		}),
	}
	patch := Tree{
		"a": Map(Tree{
			"x": Number(1),
		}),
	}

	merged := Merge(base, patch)

	inner := merged["a"].Map()
	require.Equal(t, 1.0, inner["x"].Number())
	require.Equal(t, 2.0, inner["y"].Number())
}

func TestMergeReplacesListsWholesale(t *testing.T) {
	base := Tree{"a": List(Number(1), Number(2))}
	patch := Tree{"a": List(Number(3))}

	merged := Merge(base, patch)

	items := merged["a"].List()
	require.Len(t, items, 1)
	require.Equal(t, 3.0, items[0].Number())
}

func TestMergeReplacesOnKindMismatch(t *testing.T) {
	base := Tree{"a": Map(Tree{"x": Number(1)})}
	patch := Tree{"a": String("done")}

	merged := Merge(base, patch)

	require.Equal(t, KindString, merged["a"].Kind())
	require.Equal(t, "done", merged["a"].String())
}

func TestMergePreservesBaseOnlyKeys(t *testing.T) {
	base := Tree{
		"keep":   String("original"),
		"shared": Map(Tree{"deep": Bool(true)}),
	}
	patch := Tree{
		"shared": Map(Tree{"added": Number(7)}),
	}

	merged := Merge(base, patch)

	require.Equal(t, "original", merged["keep"].String())
	shared := merged["shared"].Map()
	require.True(t, shared["deep"].Bool())
	require.Equal(t, 7.0, shared["added"].Number())
}

func TestMergeDoesNotMutateBase(t *testing.T) {
	base := Tree{
		"a": Map(Tree{"x": Number(0)}),
		"l": List(Number(1)),
	}
	patch := Tree{
		"a": Map(Tree{"x": Number(9)}),
		"l": List(Number(2), Number(3)),
	}

	merged := Merge(base, patch)

	require.Equal(t, 0.0, base["a"].Map()["x"].Number())
	require.Len(t, base["l"].List(), 1)

	// Mutating the merged result must not leak back into either input.
	merged["a"].Map()["x"] = Number(42)
	require.Equal(t, 0.0, base["a"].Map()["x"].Number())
	require.Equal(t, 9.0, patch["a"].Map()["x"].Number())
}

func TestMergeNullOverridesValue(t *testing.T) {
	base := Tree{"a": Number(5)}
	patch := Tree{"a": Null()}

	merged := Merge(base, patch)

	require.True(t, merged["a"].IsNull())
}
