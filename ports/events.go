package ports

import (
	"context"
	"time"
)

// LoginEvent is published after a session has been minted
type LoginEvent struct {
	UserID     string    `json:"user_id"`
	Address    string    `json:"address"`
	SessionID  string    `json:"session_id"`
	IsNewUser  bool      `json:"is_new_user"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, event LoginEvent) error
	PublishLogout(ctx context.Context, address string, tokenID string) error
}
