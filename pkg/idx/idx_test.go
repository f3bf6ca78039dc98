package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratesUniqueSortedIDs(t *testing.T) {
	a := idx.New()
	b := idx.New()

	require.False(t, a.IsZero())
	require.False(t, b.IsZero())
	require.NotEqual(t, a, b)

	// Monotonic entropy within the same millisecond still sorts.
	require.Less(t, a.String(), b.String())
}

func TestParse(t *testing.T) {
	id := idx.New()

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = idx.Parse("")
	require.ErrorIs(t, err, idx.ErrInvalid)

	_, err = idx.Parse("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := idx.NewAt(at)

	require.WithinDuration(t, at, id.Time(), time.Millisecond)
}
