package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	rec   *broadcast.Recorder
	clock *clock.Mock
	chat  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		rec:   broadcast.NewRecorder(),
		clock: clock.NewMock(),
	}
	f.chat = NewManager(f.store, f.rec, zaptest.NewLogger(t), WithClock(f.clock))

	game := &model.Game{ID: "g1", Name: "friday", MaxPlayers: 2, Spectators: []string{"eve"}}
	alice := &model.Player{ID: "p1", GameID: "g1", Username: "alice", Money: 1000}
	require.NoError(t, f.store.Commit(f.ctx, repository.NewChangeset().SaveGame(game).SavePlayers(alice)))
	return f
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.GetCode(err), err.Error())
}

func TestSendMessageToLobby(t *testing.T) {
	f := newFixture(t)

	msg, err := f.chat.SendMessage(f.ctx, "", "  zed ", " hello all ")
	require.NoError(t, err)
	assert.Equal(t, "zed", msg.Sender)
	assert.Equal(t, "hello all", msg.Content)
	assert.Equal(t, "CHAT", msg.Type)
	assert.Equal(t, f.clock.Now().UTC(), msg.SentAt)
	assert.NotEmpty(t, msg.ID)

	event, ok := f.rec.Last(broadcast.TopicPublicChat)
	require.True(t, ok)
	assert.Equal(t, *msg, event.Payload)

	history, err := f.chat.History(f.ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []Message{*msg}, history)
}

func TestSendMessageToGameRoom(t *testing.T) {
	f := newFixture(t)

	_, err := f.chat.SendMessage(f.ctx, "g1", "alice", "gl hf")
	require.NoError(t, err)
	_, err = f.chat.SendMessage(f.ctx, "g1", "eve", "watching")
	require.NoError(t, err)

	events := f.rec.On(broadcast.ChatTopic("g1"))
	require.Len(t, events, 2)
	assert.Equal(t, "eve", events[1].Payload.(Message).Sender)
	assert.Empty(t, f.rec.On(broadcast.TopicPublicChat))

	_, err = f.chat.SendMessage(f.ctx, "g1", "mallory", "hi")
	requireCode(t, err, apperrors.CodePlayerNotFound)

	_, err = f.chat.SendMessage(f.ctx, "nope", "alice", "hi")
	requireCode(t, err, apperrors.CodeGameNotFound)

	history, err := f.chat.History(f.ctx, "g1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	lobby, err := f.chat.History(f.ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, lobby)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		sender  string
		content string
	}{
		{"missing sender", " ", "hi"},
		{"missing content", "alice", "   "},
		{"too long", "alice", strings.Repeat("é", MaxMessageLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.chat.SendMessage(f.ctx, "g1", tt.sender, tt.content)
			requireCode(t, err, apperrors.CodeInvalidArgument)
		})
	}

	_, err := f.chat.SendMessage(f.ctx, "g1", "alice", strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)
	assert.Len(t, f.rec.Events(), 1)
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		_, err := f.chat.SendMessage(f.ctx, "g1", "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		f.clock.Add(time.Second)
	}

	recent, err := f.chat.History(f.ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].Content)
	assert.Equal(t, "m4", recent[1].Content)
	assert.True(t, recent[0].SentAt.Before(recent[1].SentAt))

	all, err := f.chat.History(f.ctx, "g1", MaxHistory+10)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = f.chat.History(f.ctx, "g1", -1)
	requireCode(t, err, apperrors.CodeInvalidArgument)

	_, err = f.chat.History(f.ctx, "nope", 0)
	requireCode(t, err, apperrors.CodeGameNotFound)
}

func TestJoinAndLeaveNotices(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.chat.JoinRoom(f.ctx, "g1", "bob"))
	require.NoError(t, f.chat.LeaveRoom(f.ctx, "g1", "bob"))

	history, err := f.chat.History(f.ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "JOIN", history[0].Type)
	assert.Equal(t, "bob joined the game", history[0].Content)
	assert.Equal(t, "LEAVE", history[1].Type)

	require.NoError(t, f.store.Commit(f.ctx, repository.NewChangeset().DeleteGame("g1")))
	err = f.chat.LeaveRoom(f.ctx, "g1", "alice")
	requireCode(t, err, apperrors.CodeGameNotFound)
	assert.Len(t, f.rec.On(broadcast.ChatTopic("g1")), 2)
}
