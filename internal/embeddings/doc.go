// Package embeddings turns note snippets into vectors.
//
// Three providers are supported: Ollama (through langchaingo), a Text
// Embeddings Inference server over HTTP, and FastEmbed for local ONNX models
// (cgo builds only). Resilient wraps any provider with instruction templates,
// rate limiting, retries and a dimension check. EmbedAll drives a provider
// over a whole vault in persisted batches.
package embeddings
