package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHost(t *testing.T) {
	h, err := parseHost("127.0.0.1:3000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", h.Name)
	require.Equal(t, 3000, h.Port)

	_, err = parseHost("no-port")
	require.Error(t, err)

	_, err = parseHost("host:not-a-number")
	require.Error(t, err)
}

func TestParseUserValue(t *testing.T) {
	require.Equal(t, int64(42), parseUserValue("42"))
	require.Equal(t, "alice", parseUserValue("alice"))
}

func TestParseBins(t *testing.T) {
	bins, err := parseBins([]string{"name=Alice", "age=30"})
	require.NoError(t, err)
	require.Equal(t, "Alice", bins["name"])
	require.Equal(t, int64(30), bins["age"])

	_, err = parseBins([]string{"missing-equals"})
	require.Error(t, err)
}
