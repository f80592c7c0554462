package research

// Task is the input of one research level. Recursion derives a new Task
// rather than mutating the parent's.
type Task struct {
	Topic    string
	Breadth  int
	Depth    int
	Findings []string
	Sources  []string
}

// SerpQuery is one planned search.
type SerpQuery struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// Result is what a traversal produced: deduplicated findings and source
// URLs in first-seen order.
type Result struct {
	Findings []string `json:"findings"`
	Sources  []string `json:"sources"`
}

// ProgressState is shared by every level of one traversal.
// CompletedQueries never decreases.
type ProgressState struct {
	CurrentDepth     int    `json:"currentDepth"`
	TotalDepth       int    `json:"totalDepth"`
	CurrentBreadth   int    `json:"currentBreadth"`
	TotalBreadth     int    `json:"totalBreadth"`
	TotalQueries     int    `json:"totalQueries"`
	CompletedQueries int    `json:"completedQueries"`
	CurrentQuery     string `json:"currentQuery,omitempty"`
	RateLimitNotice  string `json:"rateLimitNotice,omitempty"`
}

// ProgressFunc receives a snapshot of the progress after every change.
type ProgressFunc func(ProgressState)

// Extraction is the Finding Extractor's answer for one query.
type Extraction struct {
	Findings  []string `json:"learnings"`
	FollowUps []string `json:"followUpQuestions"`
}
