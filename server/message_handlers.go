package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"roomcast/domain"
	"roomcast/errors"
	"roomcast/search"
	"roomcast/services"
)

const defaultSearchLimit = 20

type messageHandlers struct {
	service services.IMessageService
	log     *slog.Logger
}

type messageOut struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Lang      string `json:"lang,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toMessageOut(m domain.Message) messageOut {
	return messageOut{
		ID:        m.ID.String(),
		Room:      string(m.RoomID),
		Author:    m.AuthorID,
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func (h *messageHandlers) history(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	var cursor *string
	if v := c.Query("cursor"); v != "" {
		cursor = &v
	}

	messages, next, err := h.service.History(c.Request.Context(), principalFrom(c), id, cursor)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":        id,
		"messages":    lo.Map(messages, func(m domain.Message, _ int) messageOut { return toMessageOut(m) }),
		"next_cursor": next,
	})
}

func (h *messageHandlers) search(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	terms := c.Query("q")
	if terms == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "missing query parameter q"})
		return
	}

	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	hits, total, err := h.service.Search(c.Request.Context(), principalFrom(c), id, terms, limit)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":  id,
		"total": total,
		"hits": lo.Map(hits, func(hit search.Hit, _ int) gin.H {
			return gin.H{
				"id":      hit.MessageID,
				"author":  hit.AuthorID,
				"content": hit.Content,
				"score":   hit.Score,
			}
		}),
	})
}

type editMessageIn struct {
	Content string `json:"content" binding:"required"`
}

func (h *messageHandlers) edit(c *gin.Context) {
	var in editMessageIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "invalid request body"})
		return
	}

	updated, err := h.service.EditMessage(c.Request.Context(), principalFrom(c), c.Param("id"), in.Content)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageOut(updated))
}

func (h *messageHandlers) remove(c *gin.Context) {
	if err := h.service.RemoveMessage(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		replyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
