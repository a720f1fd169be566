package service

import (
	"testing"

	"github.com/Stevy64/Kongossa/internal/model"
)

func TestClassifyAttachment(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		filename     string
		contentType  string
		wantKind     string
		wantFilename string
	}{
		{
			name: "no url means no attachment",
		},
		{
			name:        "declared image type",
			url:         "/media/pic.jpg",
			contentType: "image/jpeg",
			wantKind:    model.AttachmentImage,
		},
		{
			name:        "declared video type",
			url:         "/media/clip.mp4",
			contentType: "video/mp4",
			wantKind:    model.AttachmentVideo,
		},
		{
			name:        "declared audio type",
			url:         "/media/note.ogg",
			contentType: "audio/ogg",
			wantKind:    model.AttachmentAudio,
		},
		{
			name:     "extension fallback when no declared type",
			url:      "/media/photo.png",
			filename: "photo.png",
			wantKind: model.AttachmentImage,
		},
		{
			name:         "unknown type becomes file with filename",
			url:          "/media/report.pdf",
			filename:     "report.pdf",
			contentType:  "application/pdf",
			wantKind:     model.AttachmentFile,
			wantFilename: "report.pdf",
		},
		{
			name:         "file kind defaults filename from url",
			url:          "/media/archive.zip",
			contentType:  "application/zip",
			wantKind:     model.AttachmentFile,
			wantFilename: "archive.zip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := ClassifyAttachment(tt.url, tt.filename, tt.contentType)
			if tt.url == "" {
				if att != nil {
					t.Fatalf("got %+v, want nil", att)
				}
				return
			}
			if att == nil {
				t.Fatal("got nil attachment")
			}
			if att.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", att.Kind, tt.wantKind)
			}
			if att.URL != tt.url {
				t.Errorf("url = %q, want %q", att.URL, tt.url)
			}
			if att.Filename != tt.wantFilename {
				t.Errorf("filename = %q, want %q", att.Filename, tt.wantFilename)
			}
		})
	}
}
