package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/chat"
)

type ChatService interface {
	List(ctx context.Context, userID string, archived bool) ([]chat.Chat, error)
	Get(ctx context.Context, userID, chatID string) (*chat.Chat, error)
	Create(ctx context.Context, creatorID string, nc chat.NewChat) (*chat.Chat, error)
	SetArchived(ctx context.Context, userID, chatID string, archived bool) error
	Messages(ctx context.Context, userID, chatID string, f chat.MessageFilter) ([]chat.Message, error)
	Send(ctx context.Context, senderID, chatID string, body chat.MessageBody) (*chat.Message, error)
	Edit(ctx context.Context, userID, messageID string, body chat.MessageBody) (*chat.Message, error)
	Recall(ctx context.Context, userID, messageID string) (*chat.Message, error)
}

var _ ChatService = (*chat.Service)(nil)

type chatApi struct {
	svc      ChatService
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, gate gate, svc ChatService, validate *validator.Validate) {
	api := chatApi{svc: svc, validate: validate}

	cg := g.Group("/chats", gate.require())
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id/archive", api.archive)
	cg.GET("/:id/messages", api.messages)
	cg.POST("/:id/messages", api.send)

	mg := g.Group("/messages", gate.require())
	mg.PUT("/:id", api.edit)
	mg.POST("/:id/recall", api.recall)
}

func (api *chatApi) query(ctx echo.Context) error {
	chats, err := api.svc.List(ctx.Request().Context(), contextUserID(ctx), queryBool(ctx, "archived"))
	if err != nil {
		return errors.Wrap(err, "listing chats")
	}
	if chats == nil {
		chats = []chat.Chat{}
	}
	return ctx.JSON(http.StatusOK, chats)
}

func (api *chatApi) create(ctx echo.Context) error {
	var data chat.NewChat
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChat")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), contextUserID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating chat")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *chatApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "fetching chat")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *chatApi) archive(ctx echo.Context) error {
	var data ArchiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ArchiveRequest")
	}
	if err := api.svc.SetArchived(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"), data.Archived); err != nil {
		return errors.Wrap(err, "archiving chat")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *chatApi) messages(ctx echo.Context) error {
	var f chat.MessageFilter
	if s := ctx.QueryParam("before"); s != "" {
		before, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "before", Error: "before must be an RFC3339 timestamp"})
		}
		f.Before = before
	}
	if s := ctx.QueryParam("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "limit must be a positive number"})
		}
		f.Limit = limit
	}

	msgs, err := api.svc.Messages(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) bindBody(ctx echo.Context) (chat.MessageBody, error) {
	var data chat.MessageBody
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to MessageBody")
	}
	return data, data.Validate(api.validate)
}

func (api *chatApi) send(ctx echo.Context) error {
	data, err := api.bindBody(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.Send(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *chatApi) edit(ctx echo.Context) error {
	data, err := api.bindBody(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.Edit(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing message")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *chatApi) recall(ctx echo.Context) error {
	m, err := api.svc.Recall(ctx.Request().Context(), contextUserID(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recalling message")
	}
	return ctx.JSON(http.StatusOK, m)
}

type ArchiveRequest struct {
	Archived bool `json:"archived"`
}
