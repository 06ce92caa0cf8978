package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"muichiro-nexus/internal/config"
	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/extract"
	"muichiro-nexus/pkg/llm"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const documentPrompt = `You analyze documents stored in a personal cloud drive.
Reply with a single JSON object and nothing else, using exactly this shape:
{
  "summary": "2-3 sentence summary",
  "keywords": ["up to 8 keywords"],
  "contentType": "kind of document, e.g. report, invoice, notes, code",
  "language": "ISO language name",
  "wordCount": 0,
  "topics": ["up to 5 topics"]
}`

const imagePrompt = `You analyze images stored in a personal cloud drive.
Reply with a single JSON object and nothing else, using exactly this shape:
{
  "summary": "visual description in 2-3 sentences",
  "keywords": ["up to 8 keywords"],
  "contentType": "kind of image, e.g. photo, screenshot, diagram",
  "topics": ["up to 5 topics"],
  "imageDetails": {
    "mainSubjects": ["..."],
    "colors": ["dominant colors"],
    "setting": "where the scene takes place",
    "mood": "overall mood",
    "objects": ["notable objects"],
    "text": "any text visible in the image, or empty"
  },
  "technicalDetails": {
    "quality": "...",
    "lighting": "...",
    "composition": "..."
  }
}`

// TextExtractor turns raw file bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileName, mimeType string) (string, error)
}

// AnalysisService asks a language model to describe a file and stores the
// resulting metadata on its record.
type AnalysisService interface {
	Analyze(ctx context.Context, userID, fileID string) (datatypes.JSON, error)
	// AnalyzeStream is Analyze with the model output forwarded to w as it arrives.
	AnalyzeStream(ctx context.Context, userID, fileID string, w llm.MessageWriter) (datatypes.JSON, error)
}

type analysisService struct {
	fileRepo     repository.FileRepository
	store        storage.ObjectStore
	extractor    TextExtractor
	llmClient    llm.Client
	textModel    string
	visionModel  string
	maxTextChars int
	now          func() time.Time
}

func NewAnalysisService(
	fileRepo repository.FileRepository,
	store storage.ObjectStore,
	extractor TextExtractor,
	llmClient llm.Client,
	llmCfg config.LLMConfig,
	maxTextChars int,
) AnalysisService {
	return &analysisService{
		fileRepo:     fileRepo,
		store:        store,
		extractor:    extractor,
		llmClient:    llmClient,
		textModel:    llmCfg.TextModel,
		visionModel:  llmCfg.VisionModel,
		maxTextChars: maxTextChars,
		now:          time.Now,
	}
}

type analysisRequest struct {
	file            *model.File
	model           string
	messages        []llm.Message
	extractedLength int
}

func (s *analysisService) Analyze(ctx context.Context, userID, fileID string) (datatypes.JSON, error) {
	req, err := s.prepare(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	reply, err := s.llmClient.Chat(ctx, req.model, req.messages, nil)
	if err != nil {
		log.Errorf("[AnalysisService] model call for file %s failed: %v", fileID, err)
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	return s.persist(ctx, req, reply)
}

func (s *analysisService) AnalyzeStream(ctx context.Context, userID, fileID string, w llm.MessageWriter) (datatypes.JSON, error) {
	req, err := s.prepare(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	reply, err := s.llmClient.StreamChat(ctx, req.model, req.messages, nil, w)
	if err != nil {
		log.Errorf("[AnalysisService] streaming model call for file %s failed: %v", fileID, err)
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	return s.persist(ctx, req, reply)
}

func (s *analysisService) prepare(ctx context.Context, userID, fileID string) (*analysisRequest, error) {
	file, err := s.fileRepo.FindByIDForUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	data, err := s.store.GetObject(ctx, file.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	mime := model.NormalizeMimeType(file.MimeType)
	if model.IsImage(mime) {
		dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		return &analysisRequest{
			file:  file,
			model: s.visionModel,
			messages: []llm.Message{
				llm.TextMessage("system", imagePrompt),
				llm.ImageMessage("Analyze this image: "+file.FileName, dataURL),
			},
		}, nil
	}

	text, err := s.extractor.Extract(ctx, data, file.FileName, mime)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return nil, ErrNoContent
		}
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoContent
	}

	length := utf8.RuneCountInString(text)
	log.Infof("[AnalysisService] file %s: %d characters extracted", file.ID, length)
	return &analysisRequest{
		file:  file,
		model: s.textModel,
		messages: []llm.Message{
			llm.TextMessage("system", documentPrompt),
			llm.TextMessage("user", fmt.Sprintf("File name: %s\n\nContent:\n%s", file.FileName, truncateRunes(text, s.maxTextChars))),
		},
		extractedLength: length,
	}, nil
}

func (s *analysisService) persist(ctx context.Context, req *analysisRequest, reply string) (datatypes.JSON, error) {
	obj, err := parseAnalysis(reply)
	if err != nil {
		log.Warnf("[AnalysisService] unusable model reply for file %s: %v", req.file.ID, err)
		return nil, err
	}
	obj["analyzedAt"] = s.now().UTC().Format(time.RFC3339)
	obj["extractedLength"] = req.extractedLength
	obj["fileSize"] = req.file.FileSize

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.fileRepo.UpdateAnalysis(ctx, req.file.ID, raw); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// parseAnalysis decodes the first {...} region of a model reply, ignoring
// markdown code fences around it.
func parseAnalysis(reply string) (map[string]any, error) {
	cleaned := strings.ReplaceAll(reply, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return obj, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
