package chat

import (
	"context"
	"sort"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

var (
	ErrNotFound      = errors.WithMessage(core.ErrNotFound, "chat")
	ErrNotSender     = errors.WithMessage(core.ErrForbidden, "only the sender can change a message")
	ErrNotMember     = errors.WithMessage(core.ErrForbidden, "not a participant of this chat")
	ErrEditExpired   = errors.New("messages can only be edited within 15 minutes")
	ErrRecallExpired = errors.New("messages can only be recalled within 2 minutes")
	ErrRecalled      = errors.New("message was recalled")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type (
	Repository interface {
		ChatsFor(ctx context.Context, userID string, archived bool) ([]Chat, error)
		GetChat(ctx context.Context, chatID string) (*Chat, error)
		InsertChat(ctx context.Context, c *Chat) error
		SetArchived(ctx context.Context, chatID string, archived bool) error
		IsParticipant(ctx context.Context, chatID, userID string) (bool, error)

		Messages(ctx context.Context, chatID string, f MessageFilter) ([]Message, error)
		GetMessage(ctx context.Context, messageID string) (*Message, error)
		InsertMessage(ctx context.Context, m *Message) error
		UpdateMessage(ctx context.Context, m *Message) error
	}

	Service struct {
		repo  Repository
		clock clock.Clock
	}
)

func NewService(repo Repository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{repo: repo, clock: clk}
}

func (svc *Service) List(ctx context.Context, userID string, archived bool) ([]Chat, error) {
	chats, err := svc.repo.ChatsFor(ctx, userID, archived)
	return chats, errors.Wrap(err, "querying chats")
}

func (svc *Service) Get(ctx context.Context, userID, chatID string) (*Chat, error) {
	if err := svc.checkMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	c, err := svc.repo.GetChat(ctx, chatID)
	return c, errors.Wrap(err, "fetching chat")
}

// Create opens a chat; the creator always takes part in it.
func (svc *Service) Create(ctx context.Context, creatorID string, nc NewChat) (*Chat, error) {
	participants := dedup(append([]string{creatorID}, nc.Participants...))
	if len(participants) < 2 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "participants", Error: "a chat needs someone else in it"})
	}
	now := svc.clock.Now().UTC()
	c := &Chat{
		ID:           uuid.NewString(),
		CreatedBy:    creatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: participants,
	}
	if nc.Title != "" {
		c.Title = null.StringFrom(core.CleanString(nc.Title))
	}
	if nc.TeamID != "" {
		c.TeamID = null.StringFrom(nc.TeamID)
	}
	if err := svc.repo.InsertChat(ctx, c); err != nil {
		return nil, errors.Wrap(err, "inserting chat")
	}
	return c, nil
}

func (svc *Service) SetArchived(ctx context.Context, userID, chatID string, archived bool) error {
	if err := svc.checkMember(ctx, chatID, userID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.SetArchived(ctx, chatID, archived), "archiving chat")
}

func (svc *Service) Messages(ctx context.Context, userID, chatID string, f MessageFilter) ([]Message, error) {
	if err := svc.checkMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	} else if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	msgs, err := svc.repo.Messages(ctx, chatID, f)
	return msgs, errors.Wrap(err, "querying messages")
}

func (svc *Service) Send(ctx context.Context, senderID, chatID string, body MessageBody) (*Message, error) {
	content := core.CleanString(body.Content)
	if content == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "content", Error: "this field is required"})
	}
	if err := svc.checkMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	m := &Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Status:    StatusSent,
		CreatedAt: svc.clock.Now().UTC(),
	}
	if err := svc.repo.InsertMessage(ctx, m); err != nil {
		return nil, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (svc *Service) Edit(ctx context.Context, userID, messageID string, body MessageBody) (*Message, error) {
	content := core.CleanString(body.Content)
	if content == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "content", Error: "this field is required"})
	}
	m, err := svc.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching message")
	}
	now := svc.clock.Now()
	if err := checkChange(*m, userID, now, EditWindow, ErrEditExpired); err != nil {
		return nil, err
	}

	m.Content = content
	m.Status = StatusEdited
	m.EditedAt = null.TimeFrom(now.UTC())
	if err := svc.repo.UpdateMessage(ctx, m); err != nil {
		return nil, errors.Wrap(err, "updating message")
	}
	return m, nil
}

// Recall blanks a message. Recalled messages stay in the history.
func (svc *Service) Recall(ctx context.Context, userID, messageID string) (*Message, error) {
	m, err := svc.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching message")
	}
	now := svc.clock.Now()
	if err := checkChange(*m, userID, now, RecallWindow, ErrRecallExpired); err != nil {
		return nil, err
	}

	m.Content = ""
	m.Status = StatusRecalled
	m.RecalledAt = null.TimeFrom(now.UTC())
	if err := svc.repo.UpdateMessage(ctx, m); err != nil {
		return nil, errors.Wrap(err, "updating message")
	}
	return m, nil
}

func checkChange(m Message, userID string, now time.Time, window time.Duration, expired error) error {
	switch {
	case m.SenderID != userID:
		return ErrNotSender
	case m.Status == StatusRecalled:
		return core.NewValidationError(ErrRecalled)
	case now.Sub(m.CreatedAt) > window:
		return core.NewValidationError(expired)
	}
	return nil
}

func (svc *Service) checkMember(ctx context.Context, chatID, userID string) error {
	ok, err := svc.repo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return errors.Wrap(err, "checking chat participant")
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) > 1 {
		sort.Strings(out[1:])
	}
	return out
}
