package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

const (
	defaultMaxContextChars = 6000
	chunkSnippetLimit      = 200
	rowSnippetLimit        = 300
)

// ContextBuilder merges SQL rows and retrieved chunks into one ordered
// evidence list with stable one-based citation indices. SQL rows come
// first, then chunks by descending rerank score; the ordering is fully
// deterministic so the same evidence always yields the same indices.
type ContextBuilder struct {
	schema   *domain.SharedSchema
	maxChars int
}

func NewContextBuilder(schema *domain.SharedSchema, maxChars int) *ContextBuilder {
	if maxChars <= 0 {
		maxChars = defaultMaxContextChars
	}
	return &ContextBuilder{schema: schema, maxChars: maxChars}
}

func (b *ContextBuilder) Build(ir *domain.IR, sqlResult *domain.SQLResult, chunks []domain.RetrievedChunk) *domain.Context {
	ctx := &domain.Context{}
	used := 0

	if sqlResult != nil {
		b.appendRows(ctx, ir, sqlResult, &used)
	}
	b.appendChunks(ctx, chunks, &used)
	b.correlate(ctx)
	return ctx
}

func (b *ContextBuilder) appendRows(ctx *domain.Context, ir *domain.IR, result *domain.SQLResult, used *int) {
	pkIdx := -1
	table := ""
	if ir != nil {
		table = ir.Table
	}
	if t, ok := b.schema.Table(table); ok {
		for i, col := range result.Columns {
			if col == t.PrimaryKey {
				pkIdx = i
				break
			}
		}
	}

	for i, row := range result.Rows {
		snippet := rowSnippet(result.Columns, row)
		if *used+len(snippet) > b.maxChars && len(ctx.Items) > 0 {
			ctx.Truncated = true
			return
		}

		sourceID := fmt.Sprintf("%s:row-%d", table, i+1)
		if pkIdx >= 0 && pkIdx < len(row) && row[pkIdx] != nil {
			sourceID = fmt.Sprintf("%s:%v", table, row[pkIdx])
		}

		ctx.Items = append(ctx.Items, domain.EvidenceItem{
			Index:      len(ctx.Items) + 1,
			Source:     domain.SourceSQL,
			SourceID:   sourceID,
			Snippet:    snippet,
			Row:        row,
			RowColumns: result.Columns,
		})
		*used += len(snippet)
	}
	if result.Truncated {
		ctx.Truncated = true
	}
}

func (b *ContextBuilder) appendChunks(ctx *domain.Context, chunks []domain.RetrievedChunk, used *int) {
	ordered := make([]domain.RetrievedChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RerankScore != ordered[j].RerankScore {
			return ordered[i].RerankScore > ordered[j].RerankScore
		}
		return ordered[i].Rank < ordered[j].Rank
	})

	seen := make(map[string]bool, len(ordered))
	for i := range ordered {
		chunk := ordered[i]
		if chunk.ChunkID != "" && seen[chunk.ChunkID] {
			continue
		}
		seen[chunk.ChunkID] = true

		snippet := truncateRunes(strings.TrimSpace(chunk.Text), chunkSnippetLimit)
		if *used+len(snippet) > b.maxChars && len(ctx.Items) > 0 {
			ctx.Truncated = true
			return
		}

		source := domain.SourcePolicy
		if chunk.Collection == domain.CollectionOpinionChunks {
			source = domain.SourceOpinion
		}

		ctx.Items = append(ctx.Items, domain.EvidenceItem{
			Index:    len(ctx.Items) + 1,
			Source:   source,
			SourceID: chunk.ChunkID,
			Snippet:  snippet,
			Chunk:    &ordered[i],
		})
		*used += len(snippet)
	}
}

// correlate cross-links SQL rows and chunks that reference the same
// company or project. Items are never merged; correlation is an
// annotation the answer prompt can surface.
func (b *ContextBuilder) correlate(ctx *domain.Context) {
	byKey := make(map[string][]int)
	keysOf := func(item domain.EvidenceItem) []string {
		var keys []string
		if item.Chunk != nil {
			if id := item.Chunk.Metadata.CompanyID; id != "" {
				keys = append(keys, "company:"+id)
			}
			if id := item.Chunk.Metadata.ProjectID; id != "" {
				keys = append(keys, "project:"+id)
			}
			return keys
		}
		for i, col := range item.RowColumns {
			if i >= len(item.Row) || item.Row[i] == nil {
				continue
			}
			switch col {
			case "company_id":
				keys = append(keys, fmt.Sprintf("company:%v", item.Row[i]))
			case "project_id":
				keys = append(keys, fmt.Sprintf("project:%v", item.Row[i]))
			}
		}
		return keys
	}

	for i, item := range ctx.Items {
		for _, key := range keysOf(item) {
			byKey[key] = append(byKey[key], i)
		}
	}

	for _, members := range byKey {
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			for _, j := range members {
				if i == j {
					continue
				}
				ctx.Items[i].Correlates = appendUnique(ctx.Items[i].Correlates, ctx.Items[j].Index)
			}
		}
	}
	for i := range ctx.Items {
		sort.Ints(ctx.Items[i].Correlates)
	}
}

func appendUnique(list []int, v int) []int {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func rowSnippet(columns []string, row []any) string {
	var sb strings.Builder
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteByte('=')
		if i < len(row) && row[i] != nil {
			fmt.Fprintf(&sb, "%v", row[i])
		} else {
			sb.WriteString("NULL")
		}
	}
	return truncateRunes(sb.String(), rowSnippetLimit)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
