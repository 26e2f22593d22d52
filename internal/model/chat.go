package model

import (
	"time"
)

// ChatKind distinguishes player messages from join and leave notices.
type ChatKind string

const (
	ChatKindChat  ChatKind = "CHAT"
	ChatKindJoin  ChatKind = "JOIN"
	ChatKindLeave ChatKind = "LEAVE"
)

// Valid reports whether k is a known kind.
func (k ChatKind) Valid() bool {
	switch k {
	case ChatKindChat, ChatKindJoin, ChatKindLeave:
		return true
	}
	return false
}

// ChatMessage is one line of chat. An empty GameID is the public lobby room.
type ChatMessage struct {
	ID      string
	GameID  string
	Kind    ChatKind
	Sender  string
	Content string
	SentAt  time.Time
}

// Clone returns a copy of the message.
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
