package model

// CorpusStats are aggregate figures over a list of pages.
// They are always derived from the pages (see analyzer.Analyze) and can
// be recomputed at any time.
type CorpusStats struct {
	TotalPages         int       `json:"total_pages"`
	TotalWords         int       `json:"total_words"`
	TotalParagraphs    int       `json:"total_paragraphs"`
	TotalHeadings      int       `json:"total_headings"`
	TotalLinks         int       `json:"total_links"`
	TotalImages        int       `json:"total_images"`
	AvgWordsPerPage    int       `json:"avg_words_per_page"`
	ReadingTimeMinutes int       `json:"reading_time_minutes"`
	TopKeywords        []Keyword `json:"top_keywords"`
}

// Keyword is a token and the number of times it occurs in the corpus.
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// IsEmpty reports whether the stats describe an empty corpus.
func (s CorpusStats) IsEmpty() bool {
	return s.TotalPages == 0
}
