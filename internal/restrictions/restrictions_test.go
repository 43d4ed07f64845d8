package restrictions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/classlink/internal/idp"
)

func tok(claims map[string]any) *idp.IDToken { return &idp.IDToken{Claims: claims} }

func TestPolicy_Empty(t *testing.T) {
	p, err := Parse("\n  \n", false)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.True(t, p.Allow(tok(map[string]any{"sub": "anyone"})))

	var nilPolicy *Policy
	assert.True(t, nilPolicy.Allow(tok(nil)))
}

func TestPolicy_MatchesUPNThenSub(t *testing.T) {
	p := MustParse("@school\\.edu$\n^staff-", false)
	assert.Equal(t, 2, p.Len())

	assert.True(t, p.Allow(tok(map[string]any{"upn": "Bob@School.edu"})))
	assert.True(t, p.Allow(tok(map[string]any{"sub": "staff-12"})))
	assert.False(t, p.Allow(tok(map[string]any{"upn": "bob@evil.com", "sub": "staff-12"})))
	assert.False(t, p.Allow(tok(map[string]any{})))
}

func TestPolicy_CaseSensitive(t *testing.T) {
	p := MustParse("@school\\.edu$", true)
	assert.True(t, p.Allow(tok(map[string]any{"upn": "bob@school.edu"})))
	assert.False(t, p.Allow(tok(map[string]any{"upn": "bob@SCHOOL.edu"})))
}

func TestPolicy_ConfiguredClaim(t *testing.T) {
	p := MustParse("@school\\.edu$", false).WithClaim("email")
	assert.True(t, p.Allow(tok(map[string]any{"upn": "x@evil.com", "email": "bob@school.edu"})))
	assert.False(t, p.Allow(tok(map[string]any{"upn": "bob@school.edu", "email": "bob@evil.com"})))
	// sin el claim no hay fallback a upn
	assert.False(t, p.Allow(tok(map[string]any{"upn": "bob@school.edu"})))

	p.WithClaim(" ")
	assert.True(t, p.Allow(tok(map[string]any{"upn": "bob@school.edu"})))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("ok\n(unclosed", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
