package model

import "strings"

const (
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePNG      = "image/png"
	MimeJPEG     = "image/jpeg"
	MimeJPG      = "image/jpg"
)

// File type categories used by search filters.
const (
	CategoryDocument = "document"
	CategoryImage    = "image"
	CategoryOther    = "other"
)

var allowedMimeTypes = map[string]struct{}{
	MimePlain: {}, MimeMarkdown: {}, MimeHTML: {}, MimePDF: {}, MimeDOCX: {}, MimeXLSX: {},
	MimePNG: {}, MimeJPEG: {}, MimeJPG: {},
}

// DocumentMimeTypes lists the types classified as documents.
var DocumentMimeTypes = []string{MimePlain, MimeMarkdown, MimeHTML, MimePDF, MimeDOCX, MimeXLSX}

// NormalizeMimeType strips parameters such as "; charset=utf-8" and lowercases.
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func IsAllowedMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[NormalizeMimeType(mimeType)]
	return ok
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), "image/")
}

// FileCategory returns document, image or other.
func FileCategory(mimeType string) string {
	if IsImage(mimeType) {
		return CategoryImage
	}
	mt := NormalizeMimeType(mimeType)
	for _, d := range DocumentMimeTypes {
		if d == mt {
			return CategoryDocument
		}
	}
	return CategoryOther
}

var mimeByExtension = map[string]string{
	".txt": MimePlain, ".md": MimeMarkdown, ".markdown": MimeMarkdown,
	".html": MimeHTML, ".htm": MimeHTML, ".pdf": MimePDF,
	".docx": MimeDOCX, ".xlsx": MimeXLSX,
	".png": MimePNG, ".jpg": MimeJPEG, ".jpeg": MimeJPEG,
}

// MimeTypeByExtension maps a file name's extension to an allowed MIME type,
// or returns "" when the extension is not recognised.
func MimeTypeByExtension(fileName string) string {
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		return mimeByExtension[strings.ToLower(fileName[i:])]
	}
	return ""
}
