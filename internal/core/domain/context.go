package domain

type SourceType string

const (
	SourcePolicy  SourceType = "policy"
	SourceOpinion SourceType = "opinion"
	SourceSQL     SourceType = "sql"
)

// EvidenceItem is one citable fact in the merged context. Index is the
// stable 1-based citation number assigned in build order. Correlates
// lists indices of items from the other modality that reference the
// same company or project; conflicting values are reported, never
// merged.
type EvidenceItem struct {
	Index      int             `json:"index"`
	Source     SourceType      `json:"source"`
	SourceID   string          `json:"source_id"`
	Snippet    string          `json:"snippet,omitempty"`
	Chunk      *RetrievedChunk `json:"chunk,omitempty"`
	Row        []any           `json:"row,omitempty"`
	RowColumns []string        `json:"row_columns,omitempty"`
	Correlates []int           `json:"correlates,omitempty"`
}

type Context struct {
	Items     []EvidenceItem `json:"items"`
	Truncated bool           `json:"truncated,omitempty"`
}

func (c *Context) Empty() bool {
	return c == nil || len(c.Items) == 0
}

type Citation struct {
	Index    int        `json:"index"`
	Source   SourceType `json:"source_type"`
	SourceID string     `json:"source_identifier"`
	Snippet  string     `json:"snippet,omitempty"`
}

func (c *Context) Citations() []Citation {
	if c == nil {
		return nil
	}
	out := make([]Citation, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, Citation{
			Index:    item.Index,
			Source:   item.Source,
			SourceID: item.SourceID,
			Snippet:  item.Snippet,
		})
	}
	return out
}
