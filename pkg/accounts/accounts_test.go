package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDirectory struct{}

func (failingDirectory) Lookup(context.Context, string) (*Account, error) {
	return nil, errors.New("connection refused")
}

func TestCheckEligible(t *testing.T) {
	directory := NewStatic(
		&Account{Ref: "insta-1", UserID: "user-1", Status: StatusAuthenticated},
		&Account{Ref: "insta-2", UserID: "user-1", Status: StatusExpired},
	)

	testCases := []struct {
		name       string
		userID     string
		accountRef string
		eligible   bool
	}{
		{"authenticated owner", "user-1", "insta-1", true},
		{"ownership not checked", "", "insta-1", true},
		{"expired session", "user-1", "insta-2", false},
		{"another user", "user-2", "insta-1", false},
		{"unknown account", "user-1", "insta-9", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckEligible(context.Background(), directory, tc.userID, tc.accountRef)
			if tc.eligible {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, models.ErrAccountNotEligible)
			}
		})
	}
}

func TestCheckEligible_DirectoryFailure(t *testing.T) {
	err := CheckEligible(context.Background(), failingDirectory{}, "user-1", "insta-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrAccountNotEligible)
}

func TestParseStatic(t *testing.T) {
	directory := ParseStatic("insta-1:user-1, wa-2 ,")

	account, err := directory.Lookup(context.Background(), "insta-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", account.UserID)
	assert.True(t, account.Eligible())

	account, err = directory.Lookup(context.Background(), "wa-2")
	require.NoError(t, err)
	assert.Empty(t, account.UserID)

	_, err = directory.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
