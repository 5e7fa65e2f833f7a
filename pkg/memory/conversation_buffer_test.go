package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
)

func TestAppendAndSnapshot(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "s1", "hello"))
	require.NoError(t, buffer.AppendAssistant(ctx, "s1", "hi there"))

	history, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, interfaces.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, interfaces.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestHistoryTrimmedToMaxTurns(t *testing.T) {
	buffer := NewConversationBuffer(WithMaxTurns(10))
	ctx := context.Background()

	// 6 exchanges = 12 turns, 2 more than the cap
	for i := 1; i <= 6; i++ {
		require.NoError(t, buffer.AppendUser(ctx, "s1", fmt.Sprintf("question %d", i)))
		require.NoError(t, buffer.AppendAssistant(ctx, "s1", fmt.Sprintf("answer %d", i)))
	}

	history, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 10)

	// the two oldest turns were evicted first
	assert.Equal(t, "question 2", history[0].Content)
	assert.Equal(t, "answer 6", history[9].Content)
}

func TestEmptyAssistantTurnDropped(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "s1", "hello"))
	require.NoError(t, buffer.AppendAssistant(ctx, "s1", ""))

	history, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, interfaces.RoleUser, history[0].Role)
}

func TestSessionsAreIsolated(t *testing.T) {
	buffer := NewConversationBuffer(WithMaxTurns(4))
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "alice", "alice question"))
	require.NoError(t, buffer.AppendUser(ctx, "bob", "bob question"))

	aliceHistory, err := buffer.Snapshot(ctx, "alice")
	require.NoError(t, err)
	bobHistory, err := buffer.Snapshot(ctx, "bob")
	require.NoError(t, err)

	require.Len(t, aliceHistory, 1)
	require.Len(t, bobHistory, 1)
	assert.Equal(t, "alice question", aliceHistory[0].Content)
	assert.Equal(t, "bob question", bobHistory[0].Content)
}

func TestSnapshotReturnsCopy(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "s1", "original"))

	history, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	history[0].Content = "mutated"

	fresh, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh[0].Content)
}

func TestSnapshotUnknownSessionIsEmpty(t *testing.T) {
	buffer := NewConversationBuffer()

	history, err := buffer.Snapshot(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "s1", "hello"))
	require.NoError(t, buffer.Clear(ctx, "s1"))

	history, err := buffer.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSweepIdleEvictsStaleSessions(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AppendUser(ctx, "stale", "old message"))

	removed := buffer.SweepIdle(time.Now().Add(2*time.Hour), time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, buffer.Sessions())
}
