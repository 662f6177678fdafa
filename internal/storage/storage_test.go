package storage

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		wantExt     string
	}{
		{"text/plain", ".txt"},
		{"", ".txt"},
		{"text/markdown", ".md"},
		{"application/json", ".json"},
		{"text/html", ".html"},
		{"image/png", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := extensionFor(tt.contentType); got != tt.wantExt {
				t.Errorf("extensionFor(%q) = %q, want %q", tt.contentType, got, tt.wantExt)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	got := ObjectKey("user-1", models.CategoryVisionSave, "item-9", "text/markdown")
	want := "items/user-1/vision_save/item-9.md"
	if got != want {
		t.Errorf("ObjectKey() = %q, want %q", got, want)
	}
}
