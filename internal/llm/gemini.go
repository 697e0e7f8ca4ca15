package llm

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"
)

// uploadPollInterval is how often an upload still being processed is re-checked.
const uploadPollInterval = time.Second

// GeminiBackend implements Backend using the Google Gemini API.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a backend authenticated with apiKey.
func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{client: client}, nil
}

func (b *GeminiBackend) StartChat(ctx context.Context, model, system string, history []Message) (ChatSession, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	chat, err := b.client.Chats.Create(ctx, model, config, buildGeminiHistory(history))
	if err != nil {
		return nil, fmt.Errorf("gemini chat error: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

func (b *GeminiBackend) GenerateStream(ctx context.Context, model, prompt string, files []File) iter.Seq2[string, error] {
	parts := make([]*genai.Part, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	return textFragments(b.client.Models.GenerateContentStream(ctx, model, contents, nil))
}

func (b *GeminiBackend) Upload(ctx context.Context, path string) (File, error) {
	mimeType := mimeTypeFor(path)
	uploaded, err := b.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return File{}, fmt.Errorf("gemini upload error: %w", err)
	}

	// Large files are processed asynchronously; they cannot be referenced until active.
	for uploaded.State == genai.FileStateProcessing {
		if err := sleepContext(ctx, uploadPollInterval); err != nil {
			return File{}, err
		}
		uploaded, err = b.client.Files.Get(ctx, uploaded.Name, nil)
		if err != nil {
			return File{}, fmt.Errorf("gemini file status error: %w", err)
		}
	}
	if uploaded.State == genai.FileStateFailed {
		return File{}, fmt.Errorf("gemini rejected %s", filepath.Base(path))
	}

	file := File{
		Name:        uploaded.Name,
		URI:         uploaded.URI,
		MIMEType:    uploaded.MIMEType,
		DisplayName: uploaded.DisplayName,
		Path:        path,
	}
	if file.MIMEType == "" {
		file.MIMEType = mimeType
	}
	return file, nil
}

func (b *GeminiBackend) Delete(ctx context.Context, name string) error {
	if _, err := b.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("gemini delete error: %w", err)
	}
	return nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) SendStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return textFragments(c.chat.SendMessageStream(ctx, genai.Part{Text: text}))
}

// textFragments adapts a response stream into text fragments, dropping empty chunks.
func textFragments(responses iter.Seq2[*genai.GenerateContentResponse, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range responses {
			if err != nil {
				yield("", fmt.Errorf("gemini streaming error: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func buildGeminiHistory(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		contents = append(contents, &genai.Content{
			Role:  string(msg.Role),
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}

// uploadMIMETypes maps analyzable extensions to the types the service accepts.
var uploadMIMETypes = map[string]string{
	".py":   "text/x-python",
	".js":   "text/javascript",
	".ts":   "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".json": "application/json",
	".yaml": "text/plain",
	".yml":  "text/plain",
	".csv":  "text/csv",
	".xml":  "text/xml",
	".java": "text/x-java",
	".go":   "text/plain",
	".c":    "text/x-c",
	".cpp":  "text/x-c++",
	".h":    "text/x-c",
	".hpp":  "text/x-c++",
	".sh":   "text/x-sh",
	".bash": "text/x-sh",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// mimeTypeFor guesses the upload type from the extension, defaulting to text/plain.
func mimeTypeFor(path string) string {
	if mimeType, ok := uploadMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mimeType
	}
	return "text/plain"
}
