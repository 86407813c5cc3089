package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/inboxd/inboxd/internal/label"
)

// Client wraps the gmail.Service and provides the provider-side label
// operations the sync and action layers need.
type Client struct {
	Service *gmail.Service
}

// NewClient creates a new Gmail client
func NewClient(service *gmail.Service) *Client {
	return &Client{Service: service}
}

const user = "me"

// Message is a Gmail message translated into local terms: headers pulled out
// of the payload and label IDs mapped to the local vocabulary.
type Message struct {
	ID            string
	From          string
	To            string
	Subject       string
	PlainText     string
	Labels        label.Set
	HasAttachment bool
	Date          time.Time
}

// FetchLabelSnapshot returns the current provider label state of a message,
// in local vocabulary. Minimal format keeps the payload off the wire.
func (c *Client) FetchLabelSnapshot(ctx context.Context, id string) (label.Set, error) {
	msg, err := c.Service.Users.Messages.Get(user, id).Format("minimal").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch label snapshot for %s: %w", id, err)
	}
	return SetFromIDs(msg.LabelIds), nil
}

// ApplyLabelDelta applies a label add/remove delta to a message. Names
// without a Gmail ID are skipped; an empty delta is a no-op without a call.
func (c *Client) ApplyLabelDelta(ctx context.Context, id string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{}
	for _, name := range add {
		if pid, ok := ToProviderID(name); ok {
			req.AddLabelIds = append(req.AddLabelIds, pid)
		}
	}
	for _, name := range remove {
		if pid, ok := ToProviderID(name); ok {
			req.RemoveLabelIds = append(req.RemoveLabelIds, pid)
		}
	}
	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		return nil
	}

	_, err := c.Service.Users.Messages.Modify(user, id, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modify labels for %s: %w", id, err)
	}
	return nil
}

// Trash moves a message to the provider trash.
func (c *Client) Trash(ctx context.Context, id string) error {
	if _, err := c.Service.Users.Messages.Trash(user, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("trash %s: %w", id, err)
	}
	return nil
}

// Untrash restores a message from the provider trash.
func (c *Client) Untrash(ctx context.Context, id string) error {
	if _, err := c.Service.Users.Messages.Untrash(user, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("untrash %s: %w", id, err)
	}
	return nil
}

// Delete permanently removes a message from the provider.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.Service.Users.Messages.Delete(user, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// ListLabelMessages returns up to max messages carrying the given local
// label, full content included. Used by sync pulls.
func (c *Client) ListLabelMessages(ctx context.Context, labelName string, max int64) ([]*Message, error) {
	pid, ok := ToProviderID(labelName)
	if !ok {
		return nil, fmt.Errorf("label %q has no provider id", labelName)
	}

	call := c.Service.Users.Messages.List(user).LabelIds(pid).Context(ctx)
	if max > 0 {
		call = call.MaxResults(max)
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list %s messages: %w", labelName, err)
	}

	messages := make([]*Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		msg, err := c.GetMessage(ctx, m.Id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// GetMessage retrieves a message and extracts headers, plain text body and
// the local label set.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := c.Service.Users.Messages.Get(user, id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return translate(msg), nil
}

func translate(msg *gmail.Message) *Message {
	m := &Message{
		ID:     msg.Id,
		Labels: SetFromIDs(msg.LabelIds),
		Date:   time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return m
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			m.From = h.Value
		case "to":
			m.To = h.Value
		case "subject":
			m.Subject = h.Value
		}
	}
	m.PlainText = extractPlainText(msg.Payload)
	m.HasAttachment = hasAttachment(msg.Payload)
	return m
}

// extractPlainText walks the MIME tree for the first text/plain part.
func extractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			// some servers emit standard base64 here
			data, err = base64.StdEncoding.DecodeString(part.Body.Data)
			if err != nil {
				return ""
			}
		}
		return string(data)
	}
	for _, p := range part.Parts {
		if text := extractPlainText(p); text != "" {
			return text
		}
	}
	return ""
}

func hasAttachment(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasAttachment(p) {
			return true
		}
	}
	return false
}
