package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
)

func TestRegisterCreatesEmptyHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 8)
	conn := connect(t, svc, "", "")

	identity, err := svc.Register(ctx, conn.ID, "alice@example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.DisplayName)
	assert.Equal(t, domain.DefaultAvatarURL, identity.AvatarURL)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Participants)
	assert.Equal(t, 1, stats.Online)
	assert.Equal(t, 1, stats.Connections)
}

func TestRegisterRejectsEmptyEmail(t *testing.T) {
	svc := newTestService(t, 8)
	conn := connect(t, svc, "", "")

	_, err := svc.Register(context.Background(), conn.ID, "  ", "Nobody", "")
	assert.ErrorIs(t, err, domain.ErrEmailRequired)
}

func TestDisconnectKeepsHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 8)
	alice := connect(t, svc, "alice@example.com", "Alice")
	connect(t, svc, "bob@example.com", "Bob")

	_, _, err := svc.Route(ctx, "alice@example.com", "bob@example.com", "hi")
	require.NoError(t, err)

	svc.Disconnect(alice.ID)
	svc.Disconnect(alice.ID)

	_, ok := svc.Hub().FindConnectionByEmail("alice@example.com")
	assert.False(t, ok)

	history, err := svc.History(ctx, "alice@example.com", 0, "")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 2, stats.Identities)
}
