package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/core/ports"
)

const defaultUncertaintyText = "根据现有资料，无法就该问题给出可靠回答。请补充更具体的条件（如公司名称、时间范围）后重试。"

var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

const answerPromptTemplate = `你是招投标领域的问答助手。仅依据下列编号证据回答用户问题，不得使用证据之外的信息。
引用证据时在句末标注对应编号，例如 [1]。只允许引用已给出的编号。
如果证据不足以回答，直接说明无法回答。
%s
证据：
%s

用户问题：%s

回答：`

var roleGuidance = map[string]string{
	"procurement_manager": "回答面向采购经理：给出可执行的结论和注意事项，避免展开技术细节。",
	"analyst":             "回答面向分析师：给出数据口径、覆盖范围和必要的计算过程。",
}

// AnswerGenerator turns the evidence context into the final answer text
// and verifies the model only cites indices that exist.
type AnswerGenerator struct {
	llm             ports.CompletionClient
	uncertaintyText string
}

func NewAnswerGenerator(llm ports.CompletionClient, uncertaintyText string) *AnswerGenerator {
	if strings.TrimSpace(uncertaintyText) == "" {
		uncertaintyText = defaultUncertaintyText
	}
	return &AnswerGenerator{llm: llm, uncertaintyText: uncertaintyText}
}

// Uncertainty is the fixed response used whenever evidence is missing
// or insufficient.
func (g *AnswerGenerator) Uncertainty() string {
	return g.uncertaintyText
}

// Generate produces the answer text for the given evidence. The second
// return value lists citation markers in the text that do not match any
// evidence index.
func (g *AnswerGenerator) Generate(ctx context.Context, query domain.Query, evidence *domain.Context) (string, []int, error) {
	if evidence == nil || evidence.Empty() {
		return g.uncertaintyText, nil, nil
	}

	prompt := g.buildPrompt(query, evidence)
	text, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrLLMUnavailable, "answer.generate", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return g.uncertaintyText, nil, nil
	}
	return text, unknownCitations(text, len(evidence.Items)), nil
}

func (g *AnswerGenerator) buildPrompt(query domain.Query, evidence *domain.Context) string {
	var sb strings.Builder
	for _, item := range evidence.Items {
		fmt.Fprintf(&sb, "[%d] (%s %s) %s\n", item.Index, item.Source, item.SourceID, item.Snippet)
		if len(item.Correlates) > 0 {
			refs := make([]string, 0, len(item.Correlates))
			for _, idx := range item.Correlates {
				refs = append(refs, fmt.Sprintf("[%d]", idx))
			}
			fmt.Fprintf(&sb, "    与 %s 涉及同一公司或项目\n", strings.Join(refs, " "))
		}
	}
	if evidence.Truncated {
		sb.WriteString("（证据因篇幅限制有截断）\n")
	}

	guidance := ""
	if g, ok := roleGuidance[query.UserRole]; ok {
		guidance = g + "\n"
	}
	return fmt.Sprintf(answerPromptTemplate, guidance, sb.String(), query.Text)
}

// unknownCitations extracts [n] markers from the answer and returns the
// sorted, deduplicated indices outside 1..max.
func unknownCitations(text string, max int) []int {
	matches := citationMarkerPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[int]bool)
	var unknown []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= max {
			continue
		}
		if !seen[n] {
			seen[n] = true
			unknown = append(unknown, n)
		}
	}
	sort.Ints(unknown)
	return unknown
}
