package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberPattern = regexp.MustCompile(`^RST-\d{8}-[0-9A-F]{6}$`)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceSuffix(values ...string) func() string {
	i := 0
	return func() string {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestNumberGenerator_Format(t *testing.T) {
	g := NewNumberGenerator("")
	g.now = fixedClock(time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC))

	n, err := g.Next()
	require.NoError(t, err)
	assert.Regexp(t, numberPattern, n)
	assert.Contains(t, n, "-20260307-")
}

func TestNumberGenerator_CustomPrefix(t *testing.T) {
	g := NewNumberGenerator("MERCH")
	g.suffix = sequenceSuffix("ABC123")
	g.now = fixedClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

	n, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, "MERCH-20260102-ABC123", n)
}

func TestNumberGenerator_SkipsIssuedNumbers(t *testing.T) {
	g := NewNumberGenerator("RST")
	g.now = fixedClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	g.suffix = sequenceSuffix("AAAAAA", "AAAAAA", "BBBBBB")

	first, err := g.Next()
	require.NoError(t, err)
	second, err := g.Next()
	require.NoError(t, err)

	assert.Equal(t, "RST-20260102-AAAAAA", first)
	assert.Equal(t, "RST-20260102-BBBBBB", second)
}

func TestNumberGenerator_Exhausted(t *testing.T) {
	g := NewNumberGenerator("RST")
	g.now = fixedClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	g.suffix = sequenceSuffix("AAAAAA")

	_, err := g.Next()
	require.NoError(t, err)

	_, err = g.Next()
	require.ErrorIs(t, err, ErrNumberSpaceExhausted)
}

func TestNumberGenerator_NewDayResetsFilter(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	g := NewNumberGenerator("RST")
	g.now = func() time.Time { return now }
	g.suffix = sequenceSuffix("AAAAAA")

	_, err := g.Next()
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	n, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, "RST-20260103-AAAAAA", n)
}

func TestNumberGenerator_UniqueUnderRepetition(t *testing.T) {
	g := NewNumberGenerator("RST")

	seen := make(map[string]struct{}, 500)
	for range 500 {
		n, err := g.Next()
		require.NoError(t, err)
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %s", n)
		seen[n] = struct{}{}
	}
}

func TestItem_LineTotal(t *testing.T) {
	item := Item{ProductID: 1, Price: mustDecimal(t, "4.50"), Quantity: 3}
	assert.Equal(t, "13.5", item.LineTotal().String())
}
