package models

// Answer modes.
const (
	ModeConcise  = "concise"
	ModeBalanced = "balanced"
)

// SearchRequest represents a similarity query with optional domain filter.
// MinScore is a pointer so an explicit zero floor is distinguishable from
// unset, the same way RebuildIndex works on IngestRequest.
type SearchRequest struct {
	Query    string   `json:"query"`
	Domain   string   `json:"domain,omitempty"`
	TopK     int      `json:"top_k,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// Normalize applies defaults and clamps. TopK defaults to defaultTopK and is
// clamped to [1, 30]; MinScore defaults to defaultMinScore when unset.
func (r *SearchRequest) Normalize(defaultTopK int, defaultMinScore float64) {
	if r.TopK == 0 {
		r.TopK = defaultTopK
	}
	if r.TopK < 1 {
		r.TopK = 1
	}
	if r.TopK > 30 {
		r.TopK = 30
	}
	if r.MinScore == nil {
		v := defaultMinScore
		r.MinScore = &v
	}
}

// AnswerRequest asks for a synthesized answer with citations.
type AnswerRequest struct {
	Question         string `json:"question"`
	Domain           string `json:"domain,omitempty"`
	TopK             int    `json:"top_k,omitempty"`
	Mode             string `json:"mode,omitempty"`
	RequireCitations *bool  `json:"require_citations,omitempty"`
}

// WantCitations reports whether citations were requested. Defaults to true.
func (r *AnswerRequest) WantCitations() bool {
	if r.RequireCitations != nil {
		return *r.RequireCitations
	}
	return true
}
