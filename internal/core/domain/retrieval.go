package domain

type ChunkMetadata struct {
	Title       string `json:"title,omitempty"`
	CompanyID   string `json:"company_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	PublishDate string `json:"publish_date,omitempty"`
	SourceWeb   string `json:"source_web,omitempty"`
}

// RetrievedChunk is one piece of unstructured evidence. Rank is the
// 0-based position in the original vector search result and breaks
// rerank-score ties so ordering stays reproducible.
type RetrievedChunk struct {
	ChunkID         string        `json:"chunk_id"`
	Collection      string        `json:"collection"`
	Text            string        `json:"text"`
	Metadata        ChunkMetadata `json:"metadata"`
	SimilarityScore float64       `json:"similarity_score"`
	RerankScore     float64       `json:"rerank_score"`
	Rank            int           `json:"rank"`
}
