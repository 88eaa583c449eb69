package auth

import (
	"net/http"
	"strings"
)

// CredentialSource abstracts where a bearer token comes from, so the same
// authenticator serves the HTTP surface and the websocket handshake.
type CredentialSource interface {
	// ExtractToken returns the raw bearer token and whether one was present.
	ExtractToken() (string, bool)
}

// HeaderCredentials reads the standard "Authorization: Bearer <token>"
// request header.
type HeaderCredentials struct {
	Request *http.Request
}

func (c HeaderCredentials) ExtractToken() (string, bool) {
	return bearerFromHeader(c.Request.Header.Get("Authorization"))
}

// HandshakeCredentials reads the credential presented with a websocket
// upgrade request. The Authorization header is preferred; a "token" query
// parameter is accepted for clients that cannot set headers on upgrade
// (browser WebSocket API).
type HandshakeCredentials struct {
	Request *http.Request
}

func (c HandshakeCredentials) ExtractToken() (string, bool) {
	if token, ok := bearerFromHeader(c.Request.Header.Get("Authorization")); ok {
		return token, true
	}
	if token := c.Request.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

func bearerFromHeader(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", false
	}
	return token, true
}
