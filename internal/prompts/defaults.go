package prompts

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// DefaultCatalog returns the built-in utilities
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultUtilities)
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}

var defaultUtilities = []Utility{
	{
		ID:                "email_reply",
		Name:              "Email Reply",
		Description:       "Draft a polite reply to an email",
		Category:          models.CategoryUtilitySave,
		SystemInstruction: "You write clear, friendly and concise professional emails.",
		Template:          "Write a reply to the following email. Keep it under 150 words.\n\nEmail:\n{{.Input}}",
	},
	{
		ID:                "summarize",
		Name:              "Summarizer",
		Description:       "Summarize text into key points",
		Category:          models.CategoryUtilitySave,
		SystemInstruction: "You summarize documents accurately without adding information.",
		Template:          "Summarize the text below as at most five bullet points.\n\n{{.Input}}",
	},
	{
		ID:                "blog_outline",
		Name:              "Blog Outline",
		Description:       "Turn a topic into a structured outline",
		Category:          models.CategoryUtilitySave,
		SystemInstruction: "You are an editor who plans well-structured articles.",
		Template:          "Create a blog post outline with an introduction, 4-6 sections and a conclusion for the topic: {{.Input}}",
	},
	{
		ID:                "product_description",
		Name:              "Product Description",
		Description:       "Write marketing copy for a product",
		Category:          models.CategoryUtilitySave,
		SystemInstruction: "You write persuasive but honest e-commerce copy.",
		Template:          "Write a product description of about 100 words for:\n{{.Input}}",
	},
	{
		ID:                "grammar_fix",
		Name:              "Grammar Fixer",
		Description:       "Correct grammar and spelling",
		Category:          models.CategoryUtilitySave,
		SystemInstruction: "You correct grammar and spelling while preserving meaning and tone.",
		Template:          "Correct the grammar and spelling of the following text. Return only the corrected text.\n\n{{.Input}}",
	},
	{
		ID:                "image_caption",
		Name:              "Image Caption",
		Description:       "Write a social media caption for an image",
		Category:          models.CategoryVisionSave,
		SystemInstruction: "You write short, engaging social media captions.",
		Template:          "Write a caption for this image.{{if .Input}} Context: {{.Input}}{{end}}",
		AcceptsImage:      true,
	},
	{
		ID:                "alt_text",
		Name:              "Alt Text",
		Description:       "Describe an image for screen readers",
		Category:          models.CategoryVisionSave,
		SystemInstruction: "You write accessible alt text that is factual and under 125 characters.",
		Template:          "Write alt text for this image.{{if .Input}} It appears on a page about: {{.Input}}{{end}}",
		AcceptsImage:      true,
	},
	{
		ID:                "image_to_text",
		Name:              "Image Text Extractor",
		Description:       "Transcribe the text visible in an image",
		Category:          models.CategoryVisionSave,
		SystemInstruction: "You transcribe text from images exactly as written.",
		Template:          "Transcribe all readable text in this image.{{if .Input}} Focus on: {{.Input}}{{end}}",
		AcceptsImage:      true,
	},
}
