// Package provider is the REST client for the push provider's resource API.
// Notifications carry only stubs; every filter decision re-fetches the
// current object through this client.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies a valid bearer token for a user+provider pair.
// Satisfied by *token.Client.
type TokenSource interface {
	AccessToken(ctx context.Context, userID uuid.UUID, provider string) (string, error)
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: status %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the error is a provider 404.
func NotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL  string
	provider string
	tokens   TokenSource
	client   *http.Client
	timeout  time.Duration
}

func NewClient(baseURL, providerName string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		provider: providerName,
		tokens:   tokens,
		client:   &http.Client{},
		timeout:  timeout,
	}
}

// get fetches path for the user and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, userID uuid.UUID, path string, out any) error {
	tok, err := c.tokens.AccessToken(ctx, userID, c.provider)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// listResponse is the provider's collection wrapper.
type listResponse[T any] struct {
	Value []T `json:"value"`
}

func (c *Client) GetMessage(ctx context.Context, userID uuid.UUID, messageID string) (Message, error) {
	var msg Message
	err := c.get(ctx, userID, "/me/messages/"+url.PathEscape(messageID), &msg)
	return msg, err
}

func (c *Client) ListMessageAttachments(ctx context.Context, userID uuid.UUID, messageID string) ([]Attachment, error) {
	var resp listResponse[Attachment]
	err := c.get(ctx, userID, "/me/messages/"+url.PathEscape(messageID)+"/attachments?$select=id,name,contentType,size", &resp)
	return resp.Value, err
}

func (c *Client) ListMailFolders(ctx context.Context, userID uuid.UUID) ([]MailFolder, error) {
	var resp listResponse[MailFolder]
	err := c.get(ctx, userID, "/me/mailFolders?$top=100", &resp)
	return resp.Value, err
}

func (c *Client) GetEvent(ctx context.Context, userID uuid.UUID, eventID string) (Event, error) {
	var ev Event
	err := c.get(ctx, userID, "/me/events/"+url.PathEscape(eventID), &ev)
	return ev, err
}

func (c *Client) GetContact(ctx context.Context, userID uuid.UUID, contactID string) (Contact, error) {
	var contact Contact
	err := c.get(ctx, userID, "/me/contacts/"+url.PathEscape(contactID), &contact)
	return contact, err
}

func (c *Client) GetDriveItem(ctx context.Context, userID uuid.UUID, itemID string) (DriveItem, error) {
	var item DriveItem
	err := c.get(ctx, userID, "/me/drive/items/"+url.PathEscape(itemID), &item)
	return item, err
}

// ListRecentDriveItems returns the most recently changed drive items, newest
// first, bounded by limit. Used when a notification names only the drive root.
func (c *Client) ListRecentDriveItems(ctx context.Context, userID uuid.UUID, limit int) ([]DriveItem, error) {
	var resp listResponse[DriveItem]
	path := fmt.Sprintf("/me/drive/recent?$top=%d", limit)
	err := c.get(ctx, userID, path, &resp)
	return resp.Value, err
}

func (c *Client) ListTableRows(ctx context.Context, userID uuid.UUID, workbookID, tableID string) ([]TableRow, error) {
	var resp listResponse[TableRow]
	path := fmt.Sprintf("/me/drive/items/%s/workbook/tables/%s/rows",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	err := c.get(ctx, userID, path, &resp)
	return resp.Value, err
}

func (c *Client) ListTableColumns(ctx context.Context, userID uuid.UUID, workbookID, tableID string) ([]TableColumn, error) {
	var resp listResponse[TableColumn]
	path := fmt.Sprintf("/me/drive/items/%s/workbook/tables/%s/columns?$select=id,name",
		url.PathEscape(workbookID), url.PathEscape(tableID))
	err := c.get(ctx, userID, path, &resp)
	return resp.Value, err
}

func (c *Client) GetChatMessage(ctx context.Context, userID uuid.UUID, teamID, channelID, messageID string) (ChatMessage, error) {
	var msg ChatMessage
	path := fmt.Sprintf("/teams/%s/channels/%s/messages/%s",
		url.PathEscape(teamID), url.PathEscape(channelID), url.PathEscape(messageID))
	err := c.get(ctx, userID, path, &msg)
	return msg, err
}

// ListNotePages returns the most recently created pages, newest first.
// sectionID narrows to one section when non-empty.
func (c *Client) ListNotePages(ctx context.Context, userID uuid.UUID, sectionID string, limit int) ([]NotePage, error) {
	var resp listResponse[NotePage]
	path := fmt.Sprintf("/me/onenote/pages?$top=%d&$orderby=createdDateTime%%20desc", limit)
	if sectionID != "" {
		path = fmt.Sprintf("/me/onenote/sections/%s/pages?$top=%d&$orderby=createdDateTime%%20desc",
			url.PathEscape(sectionID), limit)
	}
	err := c.get(ctx, userID, path, &resp)
	return resp.Value, err
}
