package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the allowed MIME types for photo uploads.
// Yard photos only; documents and video are rejected at the edge.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// ContentTypeForKey guesses the MIME type from an object key's extension.
// Defaults to JPEG, which is what the upload form produces.
func ContentTypeForKey(fileKey string) string {
	switch strings.ToLower(strings.TrimPrefix(extOf(fileKey), ".")) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}

func extOf(fileKey string) string {
	idx := strings.LastIndex(fileKey, ".")
	if idx < 0 {
		return ""
	}
	return fileKey[idx:]
}
