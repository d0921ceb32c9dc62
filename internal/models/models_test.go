package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(string(r))
		assert.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseRole("admin")
	assert.Error(t, err)
	_, err = ParseRole("Account-Owner")
	assert.Error(t, err)
}

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "Account (0123abcd...)", PlaceholderName("0123abcd-ef45-6789"))
	assert.Equal(t, "Account (abc...)", PlaceholderName("abc"))
}

func TestPostCursor(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	c := PostCursor{CreatedAt: at, ID: "p2"}

	parsed, err := ParsePostCursor(c.String())
	assert.NoError(t, err)
	assert.True(t, parsed.CreatedAt.Equal(at))
	assert.Equal(t, "p2", parsed.ID)

	assert.True(t, c.Precedes(&Post{ID: "p1", CreatedAt: at}))
	assert.False(t, c.Precedes(&Post{ID: "p2", CreatedAt: at}))
	assert.False(t, c.Precedes(&Post{ID: "p3", CreatedAt: at}))
	assert.True(t, c.Precedes(&Post{ID: "p9", CreatedAt: at.Add(-time.Microsecond)}))
	assert.False(t, c.Precedes(&Post{ID: "p0", CreatedAt: at.Add(time.Microsecond)}))

	for _, bad := range []string{"yesterday", "", "bm8tc2VwYXJhdG9y"} {
		_, err := ParsePostCursor(bad)
		assert.Error(t, err, bad)
	}
}
