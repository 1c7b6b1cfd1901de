package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/backoffice/internal/employees"
	"github.com/retailops/backoffice/internal/shared"
)

type finderFunc func(ctx context.Context, username string) (*employees.Employee, error)

func (f finderFunc) FindByUsername(ctx context.Context, username string) (*employees.Employee, error) {
	return f(ctx, username)
}

func TestCredentialStoreVerify(t *testing.T) {
	hasher := employees.NewHasher(4)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)
	active := &employees.Employee{ID: 1, Username: "ana", PasswordHash: hash, IsActive: true}
	inactive := &employees.Employee{ID: 2, Username: "gone", PasswordHash: hash, IsActive: false}

	store, err := NewCredentialStore(finderFunc(func(_ context.Context, username string) (*employees.Employee, error) {
		switch username {
		case "ana":
			return active, nil
		case "gone":
			return inactive, nil
		default:
			return nil, shared.ErrNotFound
		}
	}), hasher)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := store.Verify(ctx, "ana", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = store.Verify(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = store.Verify(ctx, "gone", "correct-horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = store.Verify(ctx, "ghost", "correct-horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCredentialStorePassesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store, err := NewCredentialStore(finderFunc(func(context.Context, string) (*employees.Employee, error) {
		return nil, boom
	}), employees.NewHasher(4))
	require.NoError(t, err)

	_, err = store.Verify(context.Background(), "ana", "pw")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}
