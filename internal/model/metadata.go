package model

// AIMetadata is the typed view over files.ai_metadata. The column itself stores
// whatever object the model produced, plus the fields appended on persist.
type AIMetadata struct {
	Summary          string            `json:"summary,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	ContentType      string            `json:"contentType,omitempty"`
	Language         string            `json:"language,omitempty"`
	WordCount        int               `json:"wordCount,omitempty"`
	Topics           []string          `json:"topics,omitempty"`
	ImageDetails     *ImageDetails     `json:"imageDetails,omitempty"`
	TechnicalDetails *TechnicalDetails `json:"technicalDetails,omitempty"`
	AnalyzedAt       string            `json:"analyzedAt,omitempty"`
	ExtractedLength  int               `json:"extractedLength,omitempty"`
	FileSize         int64             `json:"fileSize,omitempty"`
}

type ImageDetails struct {
	MainSubjects []string `json:"mainSubjects,omitempty"`
	Colors       []string `json:"colors,omitempty"`
	Setting      string   `json:"setting,omitempty"`
	Mood         string   `json:"mood,omitempty"`
	Objects      []string `json:"objects,omitempty"`
	// Text is any text visible inside the image.
	Text string `json:"text,omitempty"`
}

type TechnicalDetails struct {
	Quality     string `json:"quality,omitempty"`
	Lighting    string `json:"lighting,omitempty"`
	Composition string `json:"composition,omitempty"`
}

// decodeLenient builds an AIMetadata from an arbitrary JSON object. A field
// whose JSON type does not fit is left empty; the rest are kept. A bare string
// where a list is expected becomes a one-element list.
func decodeLenient(raw map[string]any) *AIMetadata {
	m := &AIMetadata{
		Summary:         asString(raw["summary"]),
		Keywords:        asStrings(raw["keywords"]),
		ContentType:     asString(raw["contentType"]),
		Language:        asString(raw["language"]),
		WordCount:       int(asNumber(raw["wordCount"])),
		Topics:          asStrings(raw["topics"]),
		AnalyzedAt:      asString(raw["analyzedAt"]),
		ExtractedLength: int(asNumber(raw["extractedLength"])),
		FileSize:        int64(asNumber(raw["fileSize"])),
	}
	if img, ok := raw["imageDetails"].(map[string]any); ok {
		m.ImageDetails = &ImageDetails{
			MainSubjects: asStrings(img["mainSubjects"]),
			Colors:       asStrings(img["colors"]),
			Setting:      asString(img["setting"]),
			Mood:         asString(img["mood"]),
			Objects:      asStrings(img["objects"]),
			Text:         asString(img["text"]),
		}
	}
	if tech, ok := raw["technicalDetails"].(map[string]any); ok {
		m.TechnicalDetails = &TechnicalDetails{
			Quality:     asString(tech["quality"]),
			Lighting:    asString(tech["lighting"]),
			Composition: asString(tech["composition"]),
		}
	}
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) float64 {
	n, _ := v.(float64)
	return n
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
