package api

import (
	"context"
	"io"
)

// ChatAPI defines the interface for the Aster API client. *Client satisfies
// this interface; the TUI, the controller, and tests can use mock
// implementations.
type ChatAPI interface {
	SendMessage(ctx context.Context, chatID int64, opts SendOptions) (*SendResult, error)
	ListChats(ctx context.Context) ([]ChatSummary, error)
	GetChat(ctx context.Context, chatID int64) (*ChatDetail, error)
	DeleteChat(ctx context.Context, chatID int64) error
	RenameChat(ctx context.Context, chatID int64, title string) error
	ClearHistory(ctx context.Context, rng string) error
	ListModels(ctx context.Context) ([]ModelGroup, error)
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	RequestEmailCode(ctx context.Context, email string) error
	VerifyEmailCode(ctx context.Context, email, code string) (string, error)
	CreatePayment(ctx context.Context, amount float64) (string, error)
}

var _ ChatAPI = (*Client)(nil)
