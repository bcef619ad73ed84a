package models

// SearchHit is a single ranked result.
type SearchHit struct {
	Score  float64  `json:"score"`
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Domain string   `json:"domain"`
	Tags   []string `json:"tags"`
	Text   string   `json:"text"`
	Source string   `json:"source"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query        string      `json:"query"`
	Count        int         `json:"count"`
	Results      []SearchHit `json:"results"`
	IndexVersion int64       `json:"index_version"`
}

// Citation references one hit used to synthesize an answer.
type Citation struct {
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	Domain string  `json:"domain"`
	Score  float64 `json:"score"`
}

// AnswerResponse is a synthesized answer with confidence and citations.
type AnswerResponse struct {
	Question      string     `json:"question"`
	Domain        string     `json:"domain"`
	Answer        string     `json:"answer"`
	Confidence    float64    `json:"confidence"`
	Citations     []Citation `json:"citations"`
	EvidenceCount int        `json:"evidence_count"`
}

// Feedback ratings.
const (
	RatingUp      = "up"
	RatingDown    = "down"
	RatingNeutral = "neutral"
)

// FeedbackRequest is a user rating of an answer.
type FeedbackRequest struct {
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Rating    string     `json:"rating,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	Domain    string     `json:"domain,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// FeedbackRecord is the immutable persisted form of a feedback submission.
type FeedbackRecord struct {
	ID        string     `json:"id"`
	Timestamp int64      `json:"ts"` // unix milliseconds
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Rating    string     `json:"rating"`
	Citations []Citation `json:"citations"`
	Domain    string     `json:"domain"`
	Tags      []string   `json:"tags"`
}

// StatsResponse summarizes the corpus and feedback log.
type StatsResponse struct {
	TotalDocuments int64          `json:"total_documents"`
	Domains        map[string]int `json:"domains"`
	FeedbackCount  int64          `json:"feedback_count"`
	IndexExists    bool           `json:"index_exists"`
}
