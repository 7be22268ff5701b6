// Package protocol defines the JSON wire messages exchanged over a chat
// connection and decodes inbound payloads into a tagged variant exactly once,
// at the transport boundary.
package protocol

import (
	"encoding/json"
	"errors"
)

// ErrMalformed is returned for payloads that are not valid JSON. The caller
// logs it and keeps the connection open; no reply is sent.
var ErrMalformed = errors.New("malformed message payload")

// Kind discriminates the inbound message variants.
type Kind int

const (
	// KindLogin is a credential login request.
	KindLogin Kind = iota
	// KindRefresh is a refresh-token exchange request.
	KindRefresh
	// KindChat is anything else: relayed to all connected clients.
	KindChat
)

// Login carries the credentials of a login request.
type Login struct {
	Username string
	Password string
}

// Refresh carries the presented refresh token.
type Refresh struct {
	RefreshToken string
}

// Inbound is one decoded client message. Exactly one of Login/Refresh is
// non-nil for the corresponding kind; for KindChat, Raw holds the original
// payload to relay verbatim.
type Inbound struct {
	Kind    Kind
	Login   *Login
	Refresh *Refresh
	Raw     []byte
}

// envelope is the flat client message shape. Unknown types fall through to chat.
type envelope struct {
	Type         string `json:"type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// Decode parses one inbound payload. Payloads that are not valid JSON yield
// ErrMalformed. Valid JSON that is not a login or refresh_token object —
// including non-object values and unknown types — is chat.
func Decode(data []byte) (*Inbound, error) {
	if !json.Valid(data) {
		return nil, ErrMalformed
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Valid JSON but not an object (e.g. a bare string or array).
		return &Inbound{Kind: KindChat, Raw: data}, nil
	}
	switch env.Type {
	case "login":
		return &Inbound{Kind: KindLogin, Login: &Login{Username: env.Username, Password: env.Password}}, nil
	case "refresh_token":
		return &Inbound{Kind: KindRefresh, Refresh: &Refresh{RefreshToken: env.RefreshToken}}, nil
	default:
		return &Inbound{Kind: KindChat, Raw: data}, nil
	}
}

// serverMessage is the flat server reply shape.
type serverMessage struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func marshal(m serverMessage) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		// A flat struct of strings cannot fail to marshal.
		panic("protocol: marshal server message: " + err.Error())
	}
	return b
}

// AssignID is the first message sent on a new connection so the peer can
// correlate itself with broadcasts.
func AssignID(id string) []byte {
	return marshal(serverMessage{Type: "assign_id", ID: id})
}

// LoginSuccess carries the freshly minted token pair.
func LoginSuccess(token, refreshToken string) []byte {
	return marshal(serverMessage{Type: "login_success", Token: token, RefreshToken: refreshToken})
}

// LoginFailure reveals nothing about which part of the credentials was wrong.
func LoginFailure() []byte {
	return marshal(serverMessage{Type: "login_failure"})
}

// RefreshSuccess carries the new access token.
func RefreshSuccess(token string) []byte {
	return marshal(serverMessage{Type: "refresh_success", Token: token})
}

// RefreshFailure is sent for a bad or expired refresh token.
func RefreshFailure() []byte {
	return marshal(serverMessage{Type: "refresh_failure"})
}
