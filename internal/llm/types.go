package llm

import (
	"context"
	"iter"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is a role the service accepts in history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserText creates a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ModelText creates a model message.
func ModelText(text string) Message {
	return Message{Role: RoleModel, Content: text}
}

// File is a handle to a file stored by the service.
type File struct {
	Name        string // service-side identifier, used for deletion
	URI         string
	MIMEType    string
	DisplayName string
	Path        string // local path it was uploaded from
}

// Backend is the provider surface the client drives.
// Streams yield text fragments in order and end with a nil error on success.
type Backend interface {
	StartChat(ctx context.Context, model, system string, history []Message) (ChatSession, error)
	GenerateStream(ctx context.Context, model, prompt string, files []File) iter.Seq2[string, error]
	Upload(ctx context.Context, path string) (File, error)
	Delete(ctx context.Context, name string) error
}

// ChatSession is a stateful conversation created by Backend.StartChat.
type ChatSession interface {
	SendStream(ctx context.Context, text string) iter.Seq2[string, error]
}
