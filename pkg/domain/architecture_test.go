package domain

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDomainImportsStayLeaf keeps the domain layer free of internal packages
// and third-party modules so every adapter can depend on it.
func TestDomainImportsStayLeaf(t *testing.T) {
	entries, err := os.ReadDir(".")
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Clean(name), nil, parser.ImportsOnly)
		require.NoError(t, err, name)
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			require.NotContains(t, path, "/internal/", "%s imports %s", name, path)
			first := strings.SplitN(path, "/", 2)[0]
			require.False(t, strings.Contains(first, "."), "%s imports third-party %s", name, path)
		}
	}
}
