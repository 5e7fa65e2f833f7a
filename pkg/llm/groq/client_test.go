package groq_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
	"github.com/otic-foundation/chatrelay/pkg/llm/groq"
)

func streamChunk(t *testing.T, content string) string {
	t.Helper()
	payload, err := json.Marshal(gopenai.ChatCompletionStreamResponse{
		Choices: []gopenai.ChatCompletionStreamChoice{
			{Delta: gopenai.ChatCompletionStreamChoiceDelta{Content: content}},
		},
	})
	require.NoError(t, err)
	return fmt.Sprintf("data: %s\n\n", payload)
}

func TestStreamChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, true, reqBody["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, streamChunk(t, "Hello"))
		_, _ = io.WriteString(w, streamChunk(t, ""))
		_, _ = io.WriteString(w, streamChunk(t, " world"))
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := groq.NewClient("test-key", groq.WithBaseURL(server.URL))

	stream, err := client.StreamChat(context.Background(), []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hello", first)

	// the empty keepalive delta is skipped
	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, " world", second)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "llama-3.3-70b-versatile", reqBody["model"])

		w.Header().Set("Content-Type", "application/json")
		response := gopenai.ChatCompletionResponse{
			Choices: []gopenai.ChatCompletionChoice{
				{Message: gopenai.ChatCompletionMessage{Role: "assistant", Content: "full answer"}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	defer server.Close()

	client := groq.NewClient("test-key", groq.WithBaseURL(server.URL))

	text, err := client.Complete(context.Background(), []interfaces.Message{
		{Role: interfaces.RoleSystem, Content: "persona"},
		{Role: interfaces.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "full answer", text)
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(gopenai.ChatCompletionResponse{}))
	}))
	defer server.Close()

	client := groq.NewClient("test-key", groq.WithBaseURL(server.URL))

	_, err := client.Complete(context.Background(), []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "hi"},
	})
	assert.Error(t, err)
}
