package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"roomcast/domain"
	"roomcast/errors"
	"roomcast/services"
)

type roomHandlers struct {
	service services.IRoomService
	log     *slog.Logger
}

type createRoomIn struct {
	Name string `json:"name" binding:"required"`
}

type roomOut struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	Members int    `json:"members"`
}

func toRoomOut(r domain.Room) roomOut {
	return roomOut{
		ID:      string(r.ID),
		Name:    r.Name,
		OwnerID: r.OwnerID,
		Members: len(r.MemberIDs),
	}
}

func (h *roomHandlers) create(c *gin.Context) {
	var in createRoomIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "invalid request body"})
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), principalFrom(c), in.Name)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRoomOut(room))
}

func (h *roomHandlers) list(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context())
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rooms": lo.Map(rooms, func(r domain.Room, _ int) roomOut { return toRoomOut(r) }),
	})
}

func (h *roomHandlers) remove(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if err := h.service.DeleteRoom(c.Request.Context(), principalFrom(c), id); err != nil {
		replyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// liveMembers reports who is connected right now, not durable membership.
func (h *roomHandlers) liveMembers(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	members, err := h.service.LiveMembers(c.Request.Context(), id)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room": id,
		"members": lo.Map(members, func(m domain.Member, _ int) gin.H {
			return gin.H{"user_id": m.UserID, "name": m.Name}
		}),
	})
}
