// Package backend is the REST client for the tutoring service and the public dictionary.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"speakfluent/internal/domain"
)

const (
	DefaultBaseURL       = "http://localhost:3000/api"
	DefaultDictionaryURL = "https://api.dictionaryapi.dev/api/v2/entries/en"
	defaultTimeout       = 30 * time.Second
)

var ErrLoginFailed = errors.New("login failed")

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

type Config struct {
	BaseURL       string
	DictionaryURL string
	Timeout       time.Duration
}

// Client implements ports.ChatBackend.
type Client struct {
	baseURL       string
	dictionaryURL string
	http          *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.DictionaryURL) == "" {
		cfg.DictionaryURL = DefaultDictionaryURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		dictionaryURL: strings.TrimRight(cfg.DictionaryURL, "/"),
		http:          &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Register(ctx context.Context, username, password, email string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	body := map[string]string{"username": username, "password": password, "email": email}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/register", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.User, error) {
	var resp struct {
		Success bool   `json:"success"`
		UserID  int64  `json:"userId"`
		Message string `json:"message"`
		Email   string `json:"email"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/login", body, &resp); err != nil {
		return domain.User{}, err
	}
	if !resp.Success || resp.UserID == 0 {
		if resp.Message != "" {
			return domain.User{}, fmt.Errorf("%w: %s", ErrLoginFailed, resp.Message)
		}
		return domain.User{}, ErrLoginFailed
	}
	return domain.User{ID: resp.UserID, Username: username, Email: resp.Email}, nil
}

func (c *Client) CreateConversation(ctx context.Context, userID int64) (int64, error) {
	var resp struct {
		ConversationID int64 `json:"conversation_id"`
	}
	body := map[string]int64{"userId": userID}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/conversations", body, &resp); err != nil {
		return 0, err
	}
	if resp.ConversationID == 0 {
		return 0, errors.New("backend did not return a conversation id")
	}
	return resp.ConversationID, nil
}

func (c *Client) UserConversations(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	var resp []domain.Conversation
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/conversations/"+strconv.FormatInt(userID, 10), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ConversationInfo(ctx context.Context, conversationID int64) (domain.Conversation, error) {
	var resp domain.Conversation
	endpoint := c.baseURL + "/conversations/" + strconv.FormatInt(conversationID, 10) + "/info"
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return domain.Conversation{}, err
	}
	return resp, nil
}

func (c *Client) ConversationMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	var resp []domain.Message
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/messages/"+strconv.FormatInt(conversationID, 10), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateMessage(ctx context.Context, conversationID int64, sender domain.Sender, content string) (domain.Message, error) {
	body := struct {
		ConversationID int64         `json:"conversation_id"`
		Sender         domain.Sender `json:"sender"`
		Content        string        `json:"content"`
	}{conversationID, sender, content}
	var resp domain.Message
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/messages", body, &resp); err != nil {
		return domain.Message{}, err
	}
	return resp, nil
}

// SendChat asks the tutor for a reply. Zero ids are omitted from the request.
func (c *Client) SendChat(ctx context.Context, text string, userID, conversationID int64) (string, error) {
	body := struct {
		Text           string `json:"text"`
		UserID         int64  `json:"userId,omitempty"`
		ConversationID int64  `json:"conversationId,omitempty"`
	}{text, userID, conversationID}
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/chat/message", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) WordInfo(ctx context.Context, word string) (domain.VocabularyData, error) {
	var resp domain.VocabularyData
	endpoint := c.baseURL + "/vocabulary?word=" + url.QueryEscape(word)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return domain.VocabularyData{}, err
	}
	return resp, nil
}

type dictionaryEntry struct {
	Phonetics []domain.Pronunciation `json:"phonetics"`
	Meanings  []domain.Meaning       `json:"meanings"`
}

// DictionaryLookup merges every dictionary entry for the word into one VocabularyData.
func (c *Client) DictionaryLookup(ctx context.Context, word string) (domain.VocabularyData, error) {
	var entries []dictionaryEntry
	if err := c.do(ctx, http.MethodGet, c.dictionaryURL+"/"+url.PathEscape(word), nil, &entries); err != nil {
		return domain.VocabularyData{}, err
	}
	var data domain.VocabularyData
	for _, entry := range entries {
		data.Pronunciation = append(data.Pronunciation, entry.Phonetics...)
		data.Meaning = append(data.Meaning, entry.Meanings...)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
