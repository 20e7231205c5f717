package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"stridelink/pkg/types"
)

// sendMessageRequest is the body for posting a chat message. The server
// assigns the id and timestamp and echoes the message back over the
// live channel as a newMessage event.
type sendMessageRequest struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Sessions lists the user's chat sessions, newest activity first.
func (c *Client) Sessions(ctx context.Context) ([]types.ChatSession, error) {
	var sessions []types.ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionInfo fetches one session's metadata.
func (c *Client) SessionInfo(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	var session types.ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ChatHistory fetches the full message snapshot for one session,
// ordered by authored timestamp.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]*types.Message, error) {
	var messages []*types.Message
	path := fmt.Sprintf("/api/sessions/%s/messages", url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a plain text message into a session.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) error {
	path := fmt.Sprintf("/api/sessions/%s/messages", url.PathEscape(sessionID))
	return c.do(ctx, http.MethodPost, path, sendMessageRequest{Kind: types.MessageKindText, Text: text}, nil)
}

// SendRecommendation posts an expert recommendation into a session.
func (c *Client) SendRecommendation(ctx context.Context, sessionID, text string) error {
	path := fmt.Sprintf("/api/sessions/%s/messages", url.PathEscape(sessionID))
	return c.do(ctx, http.MethodPost, path, sendMessageRequest{Kind: types.MessageKindRecommendation, Text: text}, nil)
}

// ArchiveMessage performs the server-side delete. The server broadcasts
// the matching deleteMessage event to everyone in the session.
func (c *Client) ArchiveMessage(ctx context.Context, sessionID, messageID string) error {
	path := fmt.Sprintf("/api/sessions/%s/messages/%s", url.PathEscape(sessionID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
