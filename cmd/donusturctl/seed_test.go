package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donustur/donustur/internal/ledger"
)

func TestSeedScansIsRepeatable(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewInMemory()
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	location := func() string { return testLocations[0] }

	var out bytes.Buffer
	require.NoError(t, seedScans(ctx, l, "user-1", now, location, &out))
	assert.Equal(t, 10, strings.Count(out.String(), "Created scan at Kadıköy Geri Dönüşüm"))

	bal, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Available)

	scans, err := l.Scans(ctx, "user-1", 20)
	require.NoError(t, err)
	require.Len(t, scans, 10)
	assert.Equal(t, now, scans[0].Timestamp)
	assert.Equal(t, now.Add(-9*24*time.Hour), scans[9].Timestamp)

	out.Reset()
	require.NoError(t, seedScans(ctx, l, "user-1", now, location, &out))
	assert.Equal(t, 10, strings.Count(out.String(), "Skipped existing scan"))
	bal, err = l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Available)
}
