package embeddings

import "fmt"

// Task selects the instruction prepended to a text before embedding.
type Task string

const (
	TaskClustering     Task = "clustering"
	TaskRetrievalQuery Task = "retrieval_query"
	TaskRetrievalDoc   Task = "retrieval_doc"
	TaskNone           Task = "none"
)

// DefaultSuffix is the end-of-text marker the Qwen3 embedding models expect.
const DefaultSuffix = "<|endoftext|>"

var taskInstructions = map[Task]string{
	TaskClustering:     "Identify the topic or theme of the given text",
	TaskRetrievalQuery: "Given a search query, retrieve relevant passages",
	TaskRetrievalDoc:   "",
}

// ParseTask validates a task name. The empty string means TaskNone.
func ParseTask(s string) (Task, error) {
	switch t := Task(s); t {
	case "":
		return TaskNone, nil
	case TaskClustering, TaskRetrievalQuery, TaskRetrievalDoc, TaskNone:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown task %q", ErrInvalidConfig, s)
	}
}

// ApplyTemplate formats content for an instruction-aware embedding model:
// "Instruct: <instruction>\nQuery: <content><suffix>" when the task has an
// instruction, "<content><suffix>" otherwise. TaskNone returns content as is.
func ApplyTemplate(content string, task Task, suffix string) string {
	if task == TaskNone {
		return content
	}
	if instruction := taskInstructions[task]; instruction != "" {
		return "Instruct: " + instruction + "\nQuery: " + content + suffix
	}
	return content + suffix
}
