package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileURIRequiresScheme(t *testing.T) {
	_, err := ParseFileURI("/w/p.orc")
	assert.Error(t, err)
}

func TestParseFileURIStripsTrailingSlashAndSuffix(t *testing.T) {
	a, err := ParseFileURI("file:///w/p.orc")
	require.NoError(t, err)
	b, err := ParseFileURI("file:///w/p/")
	require.NoError(t, err)
	assert.True(t, a.Equal(FileURI{segments: []string{"w", "p"}}))
	assert.True(t, b.Equal(FileURI{segments: []string{"w", "p"}}))
}

func TestFileURIStringifyRoundTrip(t *testing.T) {
	u, err := ParseFileURI("file:///w/p.orc")
	require.NoError(t, err)
	s := u.Stringify(true)
	assert.Equal(t, "file:///w/p.orc", s)

	reparsed, err := ParseFileURI(s)
	require.NoError(t, err)
	assert.True(t, u.Equal(reparsed))
}

func TestFileURIEqualityOnDecodedSegments(t *testing.T) {
	plain, err := ParseFileURI("file:///a/b.orc")
	require.NoError(t, err)
	encoded, err := ParseFileURI("file:///a%2Fb.orc")
	require.NoError(t, err)
	assert.False(t, plain.Equal(encoded), "an encoded slash is one segment, not a separator")
}

func TestToVPath(t *testing.T) {
	base, err := ParseFileURI("file:///w")
	require.NoError(t, err)
	file, err := ParseFileURI("file:///w/b/x.orc")
	require.NoError(t, err)

	vp, ok := file.ToVPath(base)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "x"}, vp.Segments())

	extended := base.Extended(vp)
	assert.True(t, extended.Equal(file))
}

func TestToVPathRejectsFalsePrefix(t *testing.T) {
	foo, err := ParseFileURI("file:///foo")
	require.NoError(t, err)
	foobar, err := ParseFileURI("file:///foobar")
	require.NoError(t, err)
	_, ok := foobar.ToVPath(foo)
	assert.False(t, ok)
}

func TestToVPathEqualURIs(t *testing.T) {
	a, err := ParseFileURI("file:///w")
	require.NoError(t, err)
	vp, ok := a.ToVPath(a)
	require.True(t, ok)
	assert.Equal(t, 0, vp.Len())
}
