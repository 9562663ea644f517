package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathInfo(t *testing.T) {
	full, dir, err := GetPathInfo("prog/main.ir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(full))
	assert.Equal(t, "main.ir", filepath.Base(full))
	assert.Equal(t, filepath.Dir(full), dir)
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"main.ir", ".s", "main.s"},
		{"dir/main.ir", ".s", "dir/main.s"},
		{"main", ".s", "main.s"},
		{"a.b/main", ".s", "a.b/main.s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplaceExt(tt.path, tt.ext), tt.path)
	}
}

func TestResolveFrom(t *testing.T) {
	abs, err := filepath.Abs("ext.star")
	require.NoError(t, err)
	assert.Equal(t, abs, ResolveFrom("/elsewhere", abs))
	assert.Equal(t, filepath.Join("lib", "ext.star"), ResolveFrom("lib", "ext.star"))
}
