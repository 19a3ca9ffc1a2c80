package models

// RetrievedPassage is one ranked hit from the knowledge base.
type RetrievedPassage struct {
	Text      string         `json:"text"`
	Score     float64        `json:"score"`
	SourceURI string         `json:"source_uri,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// KnowledgeChunk is a row of the vector store table.
type KnowledgeChunk struct {
	Text      string
	Embedding []float32
	Metadata  map[string]any
}
