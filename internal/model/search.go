package model

// Filter values accepted by keyword search. The empty string means "all".
const (
	FilterAll        = "all"
	FilterAnalyzed   = "analyzed"
	FilterUnanalyzed = "unanalyzed"
	RangeToday       = "today"
	RangeWeek        = "week"
	RangeMonth       = "month"
)

type SearchFilters struct {
	FileType  string `json:"fileType"`
	Analyzed  string `json:"analyzed"`
	DateRange string `json:"dateRange"`
}

// RankedFile is a keyword search result.
type RankedFile struct {
	File          File     `json:"file"`
	Score         int      `json:"score"`
	MatchedFields []string `json:"matchedFields"`
}
