package service

import (
	"mime"
	"path"
	"strings"

	"github.com/Stevy64/Kongossa/internal/model"
)

// ClassifyAttachment decides which kind an already-uploaded file becomes,
// from its declared MIME type with the filename extension as fallback.
// Runs before the message store ever sees the attachment. The original
// filename is only kept for the generic file kind, where clients need it to
// label the download.
func ClassifyAttachment(url, filename, contentType string) *model.Attachment {
	if url == "" {
		return nil
	}

	ct := contentType
	if ct == "" && filename != "" {
		ct = mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	}

	switch {
	case strings.HasPrefix(ct, "image/"):
		return &model.Attachment{Kind: model.AttachmentImage, URL: url}
	case strings.HasPrefix(ct, "video/"):
		return &model.Attachment{Kind: model.AttachmentVideo, URL: url}
	case strings.HasPrefix(ct, "audio/"):
		return &model.Attachment{Kind: model.AttachmentAudio, URL: url}
	default:
		if filename == "" {
			filename = path.Base(url)
		}
		return &model.Attachment{Kind: model.AttachmentFile, URL: url, Filename: filename}
	}
}
