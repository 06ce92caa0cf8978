package service

import (
	"sort"
	"strings"

	"muichiro-nexus/internal/model"
)

// Field weights of the keyword ranker.
const (
	weightFilename     = 10
	weightSummary      = 8
	weightKeyword      = 6
	weightTopic        = 5
	weightImageSubject = 7
	weightImageObject  = 6
	weightImageColor   = 4
	weightImageText    = 9
	weightImageSetting = 3
	weightImageMood    = 3
	weightContentType  = 4
	weightPerWord      = 2
)

// Rank scores files against query and returns those with a positive score,
// highest first. Equal scores keep input order. List fields (keywords,
// topics, image subjects, objects, colors) score once on their first match.
func Rank(query string, files []model.File) []model.RankedFile {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.RankedFile{}
	}
	words := distinctWords(q)

	results := make([]model.RankedFile, 0, len(files))
	for _, f := range files {
		score, fields := scoreFile(q, words, f)
		if score > 0 {
			results = append(results, model.RankedFile{File: f, Score: score, MatchedFields: fields})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

type fieldSet struct {
	names []string
	seen  map[string]struct{}
}

func (s *fieldSet) add(name string) {
	if s.seen == nil {
		s.seen = map[string]struct{}{}
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

func contains(haystack, needle string) bool {
	return haystack != "" && strings.Contains(strings.ToLower(haystack), needle)
}

func firstMatch(items []string, q string) bool {
	for _, it := range items {
		if contains(it, q) {
			return true
		}
	}
	return false
}

func scoreFile(q string, words []string, f model.File) (int, []string) {
	score := 0
	var fields fieldSet
	hit := func(ok bool, weight int, name string) {
		if ok {
			score += weight
			fields.add(name)
		}
	}

	hit(contains(f.FileName, q), weightFilename, "filename")

	if meta := f.LenientMetadata(); meta != nil {
		hit(contains(meta.Summary, q), weightSummary, "summary")
		hit(firstMatch(meta.Keywords, q), weightKeyword, "keywords")
		hit(firstMatch(meta.Topics, q), weightTopic, "topics")
		if img := meta.ImageDetails; img != nil {
			hit(firstMatch(img.MainSubjects, q), weightImageSubject, "imageSubjects")
			hit(firstMatch(img.Objects, q), weightImageObject, "imageObjects")
			hit(firstMatch(img.Colors, q), weightImageColor, "imageColors")
			hit(contains(img.Text, q), weightImageText, "imageText")
			hit(contains(img.Setting, q), weightImageSetting, "imageSetting")
			hit(contains(img.Mood, q), weightImageMood, "imageMood")
		}
		hit(contains(meta.ContentType, q), weightContentType, "contentType")
	}

	haystack := strings.ToLower(f.FileName + string(f.AIMetadata))
	matched := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			matched++
		}
	}
	hit(matched > 1, matched*weightPerWord, "multiple_words")

	return score, fields.names
}

func distinctWords(q string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, w := range strings.Fields(q) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
