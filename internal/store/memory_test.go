package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
)

func newMessage(body string) domain.ChatMessage {
	sender := domain.NewIdentity("alice@example.com", "Alice", "")
	return domain.NewChatMessage(sender, "bob@example.com", body, time.Now())
}

func TestHistoryEmptyForUnknownEmail(t *testing.T) {
	s := NewMemoryStore()
	msgs, err := s.History(context.Background(), "nobody@example.com", 0, "")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestEnsureCreatesEntryOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Ensure(ctx, "alice@example.com"))
	require.NoError(t, s.Append(ctx, "alice@example.com", newMessage("hi")))
	require.NoError(t, s.Ensure(ctx, "alice@example.com"))

	msgs, err := s.History(ctx, "alice@example.com", 0, "")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "Ensure must not reset an existing history")

	n, err := s.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "bob@example.com", newMessage(fmt.Sprintf("m%d", i))))
	}

	msgs, err := s.History(ctx, "bob@example.com", 0, "")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Body)
	}
}

func TestHistoryLimitAndBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var ids []string
	for i := 0; i < 5; i++ {
		m := newMessage(fmt.Sprintf("m%d", i))
		ids = append(ids, m.ID)
		require.NoError(t, s.Append(ctx, "bob@example.com", m))
	}

	msgs, err := s.History(ctx, "bob@example.com", 2, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Body)
	assert.Equal(t, "m4", msgs[1].Body)

	msgs, err = s.History(ctx, "bob@example.com", 2, ids[3])
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Body)
	assert.Equal(t, "m2", msgs[1].Body)
}

func TestHistoryBeforeFollowsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// IDs minted across a wall-clock step back sort out of insertion order.
	for i, id := range []string{"03", "01", "02"} {
		m := newMessage(fmt.Sprintf("m%d", i))
		m.ID = id
		require.NoError(t, s.Append(ctx, "bob@example.com", m))
	}

	msgs, err := s.History(ctx, "bob@example.com", 0, "02")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m0", msgs[0].Body)
	assert.Equal(t, "m1", msgs[1].Body)

	msgs, err = s.History(ctx, "bob@example.com", 0, "01")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m0", msgs[0].Body)

	msgs, err = s.History(ctx, "bob@example.com", 0, "025")
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "unknown cursors compare by ID")
}

func TestHistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Append(ctx, "bob@example.com", newMessage("original")))

	msgs, err := s.History(ctx, "bob@example.com", 0, "")
	require.NoError(t, err)
	msgs[0].Body = "tampered"

	msgs, err = s.History(ctx, "bob@example.com", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "original", msgs[0].Body)
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Append(ctx, "bob@example.com", newMessage("x"))
			}
		}()
	}
	wg.Wait()

	msgs, err := s.History(ctx, "bob@example.com", 0, "")
	require.NoError(t, err)
	assert.Len(t, msgs, 200)
}
