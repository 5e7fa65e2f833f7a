package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
)

func mustMarshal(t *testing.T, message interfaces.Message) []byte {
	t.Helper()
	payload, err := json.Marshal(message)
	require.NoError(t, err)
	return payload
}

func TestRedisAppendUserPushesTrimsAndExpires(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisMemory(client, WithRedisMaxTurns(10), WithTTL(time.Hour))

	payload := mustMarshal(t, interfaces.Message{Role: interfaces.RoleUser, Content: "hello"})

	mock.ExpectTxPipeline()
	mock.ExpectRPush("chatrelay:history:s1", payload).SetVal(1)
	mock.ExpectLTrim("chatrelay:history:s1", -10, -1).SetVal("OK")
	mock.ExpectExpire("chatrelay:history:s1", time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.AppendUser(context.Background(), "s1", "hello"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAppendAssistantSkipsEmptyText(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisMemory(client)

	// no expectations set: any Redis command would fail the test
	require.NoError(t, store.AppendAssistant(context.Background(), "s1", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshot(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisMemory(client)

	userTurn := mustMarshal(t, interfaces.Message{Role: interfaces.RoleUser, Content: "hello"})
	assistantTurn := mustMarshal(t, interfaces.Message{Role: interfaces.RoleAssistant, Content: "hi"})

	mock.ExpectLRange("chatrelay:history:s1", 0, -1).
		SetVal([]string{string(userTurn), string(assistantTurn)})

	history, err := store.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, interfaces.RoleAssistant, history[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClear(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisMemory(client)

	mock.ExpectDel("chatrelay:history:s1").SetVal(1)

	require.NoError(t, store.Clear(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyPrefixOption(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisMemory(client, WithKeyPrefix("custom:"))

	mock.ExpectLRange("custom:s1", 0, -1).SetVal(nil)

	_, err := store.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
