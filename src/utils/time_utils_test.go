package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBarOpen(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 7, 42, 0, time.UTC)

	require.Equal(t, time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC), BarOpen(ts, 5*time.Minute))
	require.Equal(t, time.Date(2026, 3, 2, 10, 7, 0, 0, time.UTC), BarOpen(ts, time.Minute))
}

func TestNextBarBoundary(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 7, 42, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC), NextBarBoundary(ts, 5*time.Minute))

	// A timestamp exactly on a boundary belongs to the bar it opens.
	onBoundary := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC), NextBarBoundary(onBoundary, 5*time.Minute))
}
