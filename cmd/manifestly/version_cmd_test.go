package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manifestly/manifestly-go/internal/version"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "version")
	require.NoError(t, err)
	require.Equal(t, version.Detailed(), strings.TrimSpace(out))
}
