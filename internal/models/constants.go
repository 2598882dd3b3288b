package models

const (
	NoContextMessage = "❌ No relevant context found in the document."
	NoAnswerMessage  = "❌ No answer generated."
	NoInfoMessage    = "❌ No relevant info found in the document."
	ErrorPrefix      = "⚠️ Error: "

	ThinkTag = `(?s)<think>.*?</think>`
)

// Chunk metadata keys stored next to each vector.
const (
	MetaSource  = "source"
	MetaPage    = "page"
	MetaChunkID = "chunk_id"
)
