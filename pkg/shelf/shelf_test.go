package shelf_test

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/shelfrank/pkg/shelf"
)

// Test constants.
const (
	testRandomSeed    = 42
	testRandomOps     = 2000
	testMonotonicOps  = 300
	testQueryRepeats  = 5
	testQueryPercent  = 40
	testPrependChance = 2
)

func TestNew_Empty(t *testing.T) {
	t.Parallel()

	tr := shelf.New[string]()

	assert.True(t, tr.Empty())
	assert.Equal(t, int64(0), tr.Len())

	left, right := tr.Bounds()
	assert.Equal(t, int64(0), left)
	assert.Equal(t, int64(0), right)
}

func TestFirstInsertion_RankZero(t *testing.T) {
	t.Parallel()

	for _, prepend := range []bool{true, false} {
		tr := shelf.New[string]()

		if prepend {
			require.NoError(t, tr.Prepend("a"))
		} else {
			require.NoError(t, tr.Append("a"))
		}

		rank, ok := tr.Rank("a")
		require.True(t, ok)
		assert.Equal(t, int64(0), rank)
		assert.False(t, tr.Empty())
		assert.Equal(t, int64(1), tr.Len())

		left, right := tr.Bounds()
		assert.Equal(t, int64(0), left)
		assert.Equal(t, int64(0), right)
	}
}

func TestRankAssignment(t *testing.T) {
	t.Parallel()

	tr := shelf.New[string]()
	require.NoError(t, tr.Append("1"))
	require.NoError(t, tr.Prepend("2"))
	require.NoError(t, tr.Append("3"))
	require.NoError(t, tr.Prepend("4"))

	want := map[string]int64{"1": 0, "2": -1, "3": 1, "4": -2}
	for id, rank := range want {
		got, ok := tr.Rank(id)
		require.True(t, ok, id)
		assert.Equal(t, rank, got, id)
	}

	left, right := tr.Bounds()
	assert.Equal(t, int64(-2), left)
	assert.Equal(t, int64(1), right)
}

func TestScenarios(t *testing.T) {
	t.Parallel()

	type step struct {
		op string
		id string
	}

	tests := []struct {
		name    string
		steps   []step
		queries map[string]int64
	}{
		{
			name:    "appends only",
			steps:   []step{{"R", "1"}, {"R", "2"}, {"R", "3"}},
			queries: map[string]int64{"1": 0, "2": 1, "3": 0},
		},
		{
			name:    "prepends then append",
			steps:   []step{{"L", "1"}, {"L", "2"}, {"R", "3"}},
			queries: map[string]int64{"2": 0, "1": 1, "3": 0},
		},
		{
			name:    "alternating",
			steps:   []step{{"R", "1"}, {"L", "2"}, {"R", "3"}, {"L", "4"}},
			queries: map[string]int64{"2": 1, "1": 1, "4": 0, "3": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := shelf.New[string]()

			for _, s := range tt.steps {
				if s.op == "L" {
					require.NoError(t, tr.Prepend(s.id))
				} else {
					require.NoError(t, tr.Append(s.id))
				}
			}

			for id, want := range tt.queries {
				got, err := tr.Query(id)
				require.NoError(t, err)
				assert.Equal(t, want, got, "query %s", id)
			}
		})
	}
}

func TestQuery_UnknownIdentifier(t *testing.T) {
	t.Parallel()

	tr := shelf.New[string]()

	_, err := tr.Query("ghost")
	require.ErrorIs(t, err, shelf.ErrUnknownIdentifier)

	require.NoError(t, tr.Append("a"))

	got, err := tr.Query("ghost")
	require.ErrorIs(t, err, shelf.ErrUnknownIdentifier)
	assert.Equal(t, int64(0), got)

	_, _, err = tr.Sides("ghost")
	require.ErrorIs(t, err, shelf.ErrUnknownIdentifier)
}

func TestInsert_DuplicateIdentifier(t *testing.T) {
	t.Parallel()

	tr := shelf.New[int]()
	require.NoError(t, tr.Append(1))
	require.NoError(t, tr.Append(2))

	err := tr.Prepend(2)
	require.ErrorIs(t, err, shelf.ErrDuplicateIdentifier)

	err = tr.Append(1)
	require.ErrorIs(t, err, shelf.ErrDuplicateIdentifier)

	// A rejected insertion leaves ranks and bounds untouched.
	assert.Equal(t, int64(2), tr.Len())

	rank, ok := tr.Rank(2)
	require.True(t, ok)
	assert.Equal(t, int64(1), rank)

	left, right := tr.Bounds()
	assert.Equal(t, int64(0), left)
	assert.Equal(t, int64(1), right)
}

func TestQuery_ZeroRightAfterInsertion(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testRandomSeed, 1))
	tr := shelf.New[int]()

	for i := range testMonotonicOps {
		if rng.IntN(testPrependChance) == 0 {
			require.NoError(t, tr.Prepend(i))
		} else {
			require.NoError(t, tr.Append(i))
		}

		got, err := tr.Query(i)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)
	}
}

func TestQuery_Idempotent(t *testing.T) {
	t.Parallel()

	tr := shelf.New[string]()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, tr.Append(id))
	}

	first, err := tr.Query("c")
	require.NoError(t, err)

	for range testQueryRepeats {
		again, againErr := tr.Query("c")
		require.NoError(t, againErr)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, int64(5), tr.Len())
}

func TestQuery_Monotonic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testRandomSeed, 2))
	tr := shelf.New[int]()
	last := make(map[int]int64)

	for i := range testMonotonicOps {
		if rng.IntN(testPrependChance) == 0 {
			require.NoError(t, tr.Prepend(i))
		} else {
			require.NoError(t, tr.Append(i))
		}

		for id, prev := range last {
			got, err := tr.Query(id)
			require.NoError(t, err)
			require.GreaterOrEqual(t, got, prev, "answer for %d shrank", id)

			last[id] = got
		}

		last[i] = 0
	}
}

func TestSides_SumToLenMinusOne(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testRandomSeed, 3))
	tr := shelf.New[int]()

	for i := range testMonotonicOps {
		if rng.IntN(testPrependChance) == 0 {
			require.NoError(t, tr.Prepend(i))
		} else {
			require.NoError(t, tr.Append(i))
		}

		left, right := tr.Bounds()
		require.Equal(t, right-left+1, tr.Len())

		probe := rng.IntN(i + 1)

		l, r, err := tr.Sides(probe)
		require.NoError(t, err)
		assert.Equal(t, tr.Len()-1, l+r)

		answer, err := tr.Query(probe)
		require.NoError(t, err)
		assert.Equal(t, min(l, r), answer)
		assert.GreaterOrEqual(t, answer, int64(0))
		assert.LessOrEqual(t, answer, tr.Len()-1)
	}
}

// TestQuery_MatchesLinearScan replays a random stream against a physical
// deque located by linear search and checks every answer agrees.
func TestQuery_MatchesLinearScan(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(testRandomSeed, 4))
	tr := shelf.New[string]()

	var physical []string

	next := 0

	for range testRandomOps {
		if len(physical) > 0 && rng.IntN(100) < testQueryPercent {
			id := physical[rng.IntN(len(physical))]
			idx := int64(slices.Index(physical, id))
			want := min(idx, int64(len(physical))-idx-1)

			got, err := tr.Query(id)
			require.NoError(t, err)
			require.Equal(t, want, got, "id %s", id)

			continue
		}

		id := strconv.Itoa(next)
		next++

		if rng.IntN(testPrependChance) == 0 {
			require.NoError(t, tr.Prepend(id))

			physical = slices.Insert(physical, 0, id)
		} else {
			require.NoError(t, tr.Append(id))

			physical = append(physical, id)
		}
	}

	assert.Equal(t, int64(len(physical)), tr.Len())
}

func TestContains(t *testing.T) {
	t.Parallel()

	tr := shelf.NewWithCapacity[string](-1)
	assert.False(t, tr.Contains("x"))

	require.NoError(t, tr.Prepend("x"))
	assert.True(t, tr.Contains("x"))

	_, ok := tr.Rank("y")
	assert.False(t, ok)
}
