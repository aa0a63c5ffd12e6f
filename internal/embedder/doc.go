// Package embedder generates vector embeddings for documentation topics and snippets.
//
// Three providers are available: Jina AI and OpenAI over the network, and a
// local feature-hashing provider that works offline. All of them share an
// in-memory LRU cache keyed by content hash, so the same text always yields
// the same vector.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	topic, _ := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "routing"})
//	snippet, _ := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: snippetText})
//	sim := embedder.CosineSimilarity(topic.Vector, snippet.Vector)
//
// # Provider Selection
//
// With an empty Config.Provider the embedder is chosen from the environment:
//
//  1. If DOCCONTEXT_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → local provider
//
// # Error Handling
//
// Network providers retry transient failures with exponential backoff before
// returning ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // upstream embedding service unavailable
//	}
package embedder
