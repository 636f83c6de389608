package pgrepos

import (
	"context"
	"strconv"

	"github.com/lib/pq"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/chat"
)

const (
	chatColumns    = "c.id, c.title, c.team_id, c.created_by, c.archived, c.created_at, c.updated_at"
	messageColumns = "id, chat_id, sender_id, content, status, created_at, edited_at, recalled_at"
)

type chatRepository struct {
	exec core.DBExecutor
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(exec core.DBExecutor) *chatRepository {
	return &chatRepository{exec: exec}
}

func (repo chatRepository) ChatsFor(ctx context.Context, userID string, archived bool) ([]chat.Chat, error) {
	chats := make([]chat.Chat, 0)
	if !validID(userID) {
		return chats, nil
	}
	err := repo.exec.SelectContext(ctx, &chats,
		"SELECT "+chatColumns+` FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1 AND c.archived = $2
		ORDER BY c.updated_at DESC`,
		userID, archived,
	)
	if err != nil {
		return nil, classify("chats", err)
	}
	if err = repo.loadParticipants(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (repo chatRepository) GetChat(ctx context.Context, chatID string) (*chat.Chat, error) {
	if !validID(chatID) {
		return nil, chat.ErrNotFound
	}
	var c chat.Chat
	if err := repo.exec.GetContext(ctx, &c, "SELECT "+chatColumns+" FROM chats c WHERE c.id = $1", chatID); err != nil {
		return nil, trapNoRowsErr(err, chat.ErrNotFound, "chats")
	}
	chats := []chat.Chat{c}
	if err := repo.loadParticipants(ctx, chats); err != nil {
		return nil, err
	}
	return &chats[0], nil
}

func (repo chatRepository) loadParticipants(ctx context.Context, chats []chat.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]string, 0, len(chats))
	index := make(map[string]int, len(chats))
	for i, c := range chats {
		ids = append(ids, c.ID)
		index[c.ID] = i
	}

	var rows []struct {
		ChatID string `db:"chat_id"`
		UserID string `db:"user_id"`
	}
	err := repo.exec.SelectContext(ctx, &rows,
		"SELECT chat_id, user_id FROM chat_participants WHERE chat_id = ANY ($1::uuid[]) ORDER BY joined_at, user_id",
		pq.Array(ids),
	)
	if err != nil {
		return classify("chat_participants", err)
	}
	for _, r := range rows {
		i := index[r.ChatID]
		chats[i].Participants = append(chats[i].Participants, r.UserID)
	}
	return nil
}

// InsertChat stores c together with its participants in one statement.
func (repo chatRepository) InsertChat(ctx context.Context, c *chat.Chat) error {
	_, err := repo.exec.ExecContext(ctx,
		`WITH inserted AS (
			INSERT INTO chats (id, title, team_id, created_by, archived, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		)
		INSERT INTO chat_participants (chat_id, user_id)
		SELECT inserted.id, participant FROM inserted, unnest($8::uuid[]) AS participant`,
		c.ID, c.Title, c.TeamID, c.CreatedBy, c.Archived, c.CreatedAt, c.UpdatedAt, pq.Array(c.Participants),
	)
	return classify("chats", err)
}

func (repo chatRepository) SetArchived(ctx context.Context, chatID string, archived bool) error {
	if !validID(chatID) {
		return chat.ErrNotFound
	}
	res, err := repo.exec.ExecContext(ctx,
		"UPDATE chats SET archived = $2, updated_at = now() WHERE id = $1", chatID, archived)
	if err != nil {
		return classify("chats", err)
	}
	return expectOne(res, chat.ErrNotFound, "chats")
}

func (repo chatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	if !validID(chatID) || !validID(userID) {
		return false, nil
	}
	var ok bool
	err := repo.exec.GetContext(ctx, &ok,
		"SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)", chatID, userID)
	return ok, classify("chat_participants", err)
}

// Messages returns the newest f.Limit messages older than f.Before, oldest first.
func (repo chatRepository) Messages(ctx context.Context, chatID string, f chat.MessageFilter) ([]chat.Message, error) {
	var w whereBuilder
	w.add("chat_id = ?", chatID)
	if !f.Before.IsZero() {
		w.add("created_at < ?", f.Before)
	}
	w.args = append(w.args, f.Limit)
	q := "SELECT * FROM (SELECT " + messageColumns + " FROM messages" + w.String() +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(w.args)) + ") page ORDER BY created_at"

	msgs := make([]chat.Message, 0)
	if err := repo.exec.SelectContext(ctx, &msgs, q, w.args...); err != nil {
		return nil, classify("messages", err)
	}
	return msgs, nil
}

func (repo chatRepository) GetMessage(ctx context.Context, messageID string) (*chat.Message, error) {
	if !validID(messageID) {
		return nil, chat.ErrNotFound
	}
	var m chat.Message
	err := repo.exec.GetContext(ctx, &m, "SELECT "+messageColumns+" FROM messages WHERE id = $1", messageID)
	if err != nil {
		return nil, trapNoRowsErr(err, chat.ErrNotFound, "messages")
	}
	return &m, nil
}

// InsertMessage stores m and bumps the chat so it sorts first in listings.
func (repo chatRepository) InsertMessage(ctx context.Context, m *chat.Message) error {
	_, err := repo.exec.ExecContext(ctx,
		`WITH inserted AS (
			INSERT INTO messages (`+messageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING chat_id, created_at
		)
		UPDATE chats SET updated_at = inserted.created_at FROM inserted WHERE chats.id = inserted.chat_id`,
		m.ID, m.ChatID, m.SenderID, m.Content, string(m.Status), m.CreatedAt, m.EditedAt, m.RecalledAt,
	)
	return classify("messages", err)
}

func (repo chatRepository) UpdateMessage(ctx context.Context, m *chat.Message) error {
	res, err := repo.exec.ExecContext(ctx,
		"UPDATE messages SET content = $2, status = $3, edited_at = $4, recalled_at = $5 WHERE id = $1",
		m.ID, m.Content, string(m.Status), m.EditedAt, m.RecalledAt,
	)
	if err != nil {
		return classify("messages", err)
	}
	return expectOne(res, chat.ErrNotFound, "messages")
}
