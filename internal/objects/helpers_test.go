package objects

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/testutil"
)

// newTestStore opens and initializes a store under a fresh temp dir with a
// deterministic clock (Epoch, one second per write).
func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "store")
	clock := testutil.NewClock(testutil.Epoch, time.Second)

	s, err := Open(root, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(t.Context()))
	return s, root
}

// regularFiles returns every regular file below dir, relative to dir.
func regularFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}
