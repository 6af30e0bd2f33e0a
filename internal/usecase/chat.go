package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

const FallbackReply = "I'm sorry, I couldn't process that message."

var ErrNotSignedIn = errors.New("sign in to start a conversation")

// ChatService sends user messages to the tutor and stores both sides of the exchange.
type ChatService struct {
	backend ports.ChatBackend
	events  ports.EventSink
	logger  *slog.Logger
	now     func() time.Time
}

func NewChatService(backend ports.ChatBackend, events ports.EventSink, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		backend: backend,
		events:  events,
		logger:  logger.With("component", "chat"),
		now:     time.Now,
	}
}

// Send posts text to conversationID, creating the conversation first when the id is 0.
// Empty text is a no-op and returns a zero ChatTurn.
func (s *ChatService) Send(ctx context.Context, userID, conversationID int64, text string) (domain.ChatTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatTurn{}, nil
	}
	if userID == 0 {
		return domain.ChatTurn{}, ErrNotSignedIn
	}

	turn := domain.ChatTurn{ConversationID: conversationID}
	if conversationID == 0 {
		id, err := s.backend.CreateConversation(ctx, userID)
		if err != nil {
			return domain.ChatTurn{}, fmt.Errorf("create conversation: %w", err)
		}
		turn.ConversationID = id
		turn.Created = true
	}

	pending := s.localMessage(turn.ConversationID, domain.SenderUser, text, 0)
	s.emit(pending)

	var (
		reply  string
		stored domain.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reply, err = s.backend.SendChat(gctx, text, userID, turn.ConversationID)
		if err != nil {
			return fmt.Errorf("send chat message: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stored, err = s.backend.CreateMessage(gctx, turn.ConversationID, domain.SenderUser, text)
		if err != nil {
			return fmt.Errorf("store user message: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("chat send failed", "conversation", turn.ConversationID, "error", err)
		return turn, err
	}
	turn.User = s.complete(stored, pending)

	content := strings.TrimSpace(reply)
	if content == "" {
		content = FallbackReply
	}
	aiMessage, err := s.backend.CreateMessage(ctx, turn.ConversationID, domain.SenderAI, content)
	if err != nil {
		s.logger.Error("failed to store reply", "conversation", turn.ConversationID, "error", err)
		return turn, fmt.Errorf("store reply: %w", err)
	}
	turn.Reply = s.complete(aiMessage, s.localMessage(turn.ConversationID, domain.SenderAI, content, 1))
	s.emit(turn.Reply)

	s.logger.Debug("chat turn complete", "conversation", turn.ConversationID, "reply_id", turn.Reply.ID)
	return turn, nil
}

// Conversations lists the conversations of userID.
func (s *ChatService) Conversations(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	if userID == 0 {
		return nil, ErrNotSignedIn
	}
	return s.backend.UserConversations(ctx, userID)
}

// Open loads the history of one conversation.
func (s *ChatService) Open(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	if _, err := s.backend.ConversationInfo(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("load conversation %d: %w", conversationID, err)
	}
	messages, err := s.backend.ConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages of conversation %d: %w", conversationID, err)
	}
	return messages, nil
}

// Start creates an empty conversation for userID.
func (s *ChatService) Start(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, ErrNotSignedIn
	}
	return s.backend.CreateConversation(ctx, userID)
}

func (s *ChatService) localMessage(conversationID int64, sender domain.Sender, content string, offset int64) domain.Message {
	now := s.now()
	return domain.Message{
		ID:             now.UnixMilli() + offset,
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}
}

// complete fills the fields the backend left out of a stored message.
func (s *ChatService) complete(stored, local domain.Message) domain.Message {
	if stored.ID == 0 {
		stored.ID = local.ID
	}
	if stored.ConversationID == 0 {
		stored.ConversationID = local.ConversationID
	}
	if stored.Sender == "" {
		stored.Sender = local.Sender
	}
	if stored.Content == "" {
		stored.Content = local.Content
	}
	if stored.Timestamp == "" {
		stored.Timestamp = local.Timestamp
	}
	return stored
}

func (s *ChatService) emit(message domain.Message) {
	if s.events != nil {
		s.events.MessageAdded(message)
	}
}
