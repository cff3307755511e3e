package subagent

import (
	"sort"
	"strings"

	"github.com/smallnest/agentgraph/tool"
)

// Reranker scores documents against the question with simple lexical
// matching and orders them best first.
type Reranker struct {
	// LexicalWeight balances the lexical score against the document's
	// retrieval score.
	LexicalWeight float64
}

// NewReranker creates a reranker with the default weighting.
func NewReranker() *Reranker {
	return &Reranker{LexicalWeight: 0.3}
}

// Rerank returns the documents ordered by combined score, descending. The
// input slice is not modified.
func (r *Reranker) Rerank(question string, documents []tool.Document) []tool.Document {
	queryTerms := strings.Fields(strings.ToLower(question))

	ranked := make([]tool.Document, len(documents))
	copy(ranked, documents)

	for i := range ranked {
		content := strings.ToLower(ranked[i].Title + " " + ranked[i].Content)

		var lexical float64
		for _, term := range queryTerms {
			lexical += float64(strings.Count(content, term))
		}
		// Normalize by document length so long pages don't dominate.
		if len(content) > 0 {
			lexical = lexical / float64(len(content)) * 1000
		}

		ranked[i].Score = (1-r.LexicalWeight)*ranked[i].Score + r.LexicalWeight*lexical
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}
