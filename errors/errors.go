package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Authentication errors are fatal to the connection attempt.
	ErrInvalidCredential = fmt.Errorf("missing, malformed or expired credential")
	ErrPrincipalNotFound = fmt.Errorf("principal no longer exists")
	ErrInvalidPassword   = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidLogin      = fmt.Errorf("invalid email or password")
	ErrTokenGeneration   = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")

	// Authorization errors are surfaced to the caller, the connection stays open.
	ErrNotInRoom    = fmt.Errorf("sender has not joined the room")
	ErrNotRoomOwner = fmt.Errorf("user does not own the room")
	ErrNotAuthor    = fmt.Errorf("user is not the author of the message")

	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrMessageNotFound = fmt.Errorf("message not found")

	ErrEmptyContent    = fmt.Errorf("message content is empty")
	ErrContentTooLong  = fmt.Errorf("message content exceeds maximum length")
	ErrInvalidRoomName = fmt.Errorf("room name is empty or too long")

	// ErrNotAMember rejects leaving a room the user never joined. The
	// operation conflicts with the current membership state, it is not a
	// denied access.
	ErrNotAMember = fmt.Errorf("user is not a member of the room")

	// ErrMembershipRequired denies reading a room's content without a
	// durable membership.
	ErrMembershipRequired = fmt.Errorf("operation requires room membership")

	ErrPersistence = fmt.Errorf("storage operation failed")

	// ErrSlowConsumer marks a connection whose send buffer is full; the
	// event is dropped for that connection only.
	ErrSlowConsumer = fmt.Errorf("client send buffer full")
)

// WireCode is the machine-readable error class sent to clients, inside a
// websocket error event or an HTTP error body.
type WireCode string

const (
	CodeAuthentication WireCode = "AUTHENTICATION"
	CodeAuthorization  WireCode = "AUTHORIZATION"
	CodeNotFound       WireCode = "NOT_FOUND"
	CodeValidation     WireCode = "VALIDATION"
	CodePersistence    WireCode = "PERSISTENCE"
	CodeConflict       WireCode = "CONFLICT"
	CodeInternal       WireCode = "INTERNAL"
)

// ToWireCode maps a domain error to its wire class. Unknown errors collapse
// to INTERNAL so internals never leak to a client.
func ToWireCode(err error) WireCode {
	switch {
	case errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrPrincipalNotFound),
		errors.Is(err, ErrInvalidLogin):
		return CodeAuthentication
	case errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrNotRoomOwner),
		errors.Is(err, ErrNotAuthor),
		errors.Is(err, ErrMembershipRequired):
		return CodeAuthorization
	case errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrMessageNotFound):
		return CodeNotFound
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrInvalidRoomName),
		errors.Is(err, ErrInvalidPassword):
		return CodeValidation
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrNotAMember):
		return CodeConflict
	default:
		return CodeInternal
	}
}

// HTTPStatus translates a wire class to a status code for the REST surface.
func HTTPStatus(code WireCode) int {
	switch code {
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
