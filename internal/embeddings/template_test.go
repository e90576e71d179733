package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTemplate(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{
			name: "clustering",
			task: TaskClustering,
			want: "Instruct: Identify the topic or theme of the given text\nQuery: weekly review<|endoftext|>",
		},
		{
			name: "retrieval query",
			task: TaskRetrievalQuery,
			want: "Instruct: Given a search query, retrieve relevant passages\nQuery: weekly review<|endoftext|>",
		},
		{
			name: "retrieval doc has no instruction",
			task: TaskRetrievalDoc,
			want: "weekly review<|endoftext|>",
		},
		{
			name: "none leaves content untouched",
			task: TaskNone,
			want: "weekly review",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyTemplate("weekly review", tt.task, DefaultSuffix))
		})
	}
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask("")
	require.NoError(t, err)
	assert.Equal(t, TaskNone, task)

	task, err = ParseTask("clustering")
	require.NoError(t, err)
	assert.Equal(t, TaskClustering, task)

	_, err = ParseTask("summarize")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
