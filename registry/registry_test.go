package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	s, ok := Lookup("standard-header-image-text")
	require.True(t, ok)
	assert.Equal(t, Standard, s.Category)
	assert.Equal(t, 970, s.Width)

	h, ok := s.Bound(RoleHeadline)
	require.True(t, ok)
	assert.Equal(t, 10, h.MinChars)
	assert.Equal(t, 50, h.MaxChars)

	b, ok := s.Bound(RoleBody)
	require.True(t, ok)
	assert.Equal(t, 50, b.MinChars)
	assert.Equal(t, 2000, b.MaxChars)
}

func TestLookupMissing(t *testing.T) {
	s, ok := Lookup("no-such-module")
	assert.False(t, ok)
	assert.Empty(t, s.ID)
}

func TestLookupReturnsCopy(t *testing.T) {
	s, _ := Lookup("standard-header-image-text")
	s.Text[0].MaxChars = 1

	again, _ := Lookup("standard-header-image-text")
	assert.Equal(t, 50, again.Text[0].MaxChars)
}

func TestAllOrdering(t *testing.T) {
	all := All()
	var standard, premium int
	seenPremium := false
	for _, s := range all {
		switch s.Category {
		case Standard:
			standard++
			assert.False(t, seenPremium, "standard spec %s listed after a premium one", s.ID)
		case Premium:
			premium++
			seenPremium = true
		}
	}
	assert.Equal(t, 9, standard)
	assert.Equal(t, 3, premium)
}

func TestSlotCounts(t *testing.T) {
	s, _ := Lookup("standard-single-image-sidebar")
	assert.Equal(t, 2, s.RequiredText())
	assert.Equal(t, 1, s.OptionalText())
}

func TestCheck(t *testing.T) {
	s, _ := Lookup("standard-header-image-text")

	t.Run("within bounds", func(t *testing.T) {
		v := s.Check(map[Role]string{
			RoleHeadline: "Ten chars or more",
			RoleBody:     strings.Repeat("body ", 20),
		}, 1)
		assert.Empty(t, v)
	})

	t.Run("short headline and missing body", func(t *testing.T) {
		v := s.Check(map[Role]string{RoleHeadline: "Short"}, 1)
		require.Len(t, v, 2)
		assert.Equal(t, "headline", v[0].Role)
		assert.Equal(t, "body", v[1].Role)
	})

	t.Run("too many images", func(t *testing.T) {
		v := s.Check(map[Role]string{
			RoleHeadline: "Ten chars or more",
			RoleBody:     strings.Repeat("body ", 20),
		}, 3)
		require.Len(t, v, 1)
		assert.Equal(t, "images", v[0].Role)
	})
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Bullets ")
	assert.True(t, ok)
	assert.Equal(t, RoleBullets, r)

	r, ok = ParseRole("tagline")
	assert.False(t, ok)
	assert.Equal(t, RoleStatic, r)
	assert.Equal(t, "specifications", RoleSpecifications.String())
}
