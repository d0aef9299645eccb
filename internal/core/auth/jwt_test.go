package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParse(t *testing.T) {
	j := NewJWTer("k", "lab", time.Hour)
	tok, err := j.Issue(42, RoleAdmin)
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.UID)
	assert.Equal(t, RoleAdmin, c.Role)
	assert.Equal(t, "42", c.Subject)
}

func TestParseRejects(t *testing.T) {
	j := NewJWTer("k", "lab", time.Hour)
	tok, err := j.Issue(1, RoleUser)
	require.NoError(t, err)

	other := NewJWTer("other", "lab", time.Hour)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTer("k", "elsewhere", time.Hour)
	_, err = wrongIssuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	j := NewJWTer("k", "lab", time.Minute)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }
	tok, err := j.Issue(1, RoleUser)
	require.NoError(t, err)

	j.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
