package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinaryResolvesTimezonesWithoutSystemZoneinfo(t *testing.T) {
	t.Setenv("ZONEINFO", t.TempDir())
	for _, name := range []string{"Europe/Berlin", "Asia/Tokyo", "America/New_York"} {
		_, err := time.LoadLocation(name)
		require.NoError(t, err, name)
	}
}
