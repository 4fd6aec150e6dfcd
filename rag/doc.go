// Package rag defines the document, embedder and vector store abstractions
// shared by the sheetflow agents, plus adapters bridging langchaingo's
// loaders and vector stores to those abstractions.
//
// Concrete stores live in rag/store (in-memory with local persistence,
// Chroma, Pinecone) and concrete loaders in rag/loader (CSV, web, EML).
package rag
