package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RESEARCH_TEST_DIR", "/srv/data")

	got, err := Expand("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Expand("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = Expand("~/sessions")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sessions"), got)

	got, err = Expand("$RESEARCH_TEST_DIR/cache")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data/cache", got)

	got, err = Expand("  /var//tmp/./x ")
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/x", got)
}
