package lobby

import (
	"testing"

	"github.com/gorilla/websocket"

	"github.com/kickin-server/internal/chat"
	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
)

func TestChatRejectionIsNotBroadcast(t *testing.T) {
	filter := chat.NewWordList([]string{"heck"}, nil)
	l := testLobby(t, config.LobbyConfig{}, filter)

	sender := &domain.User{ID: "u1", Name: "One", RemainingMatches: 3}
	s1, client1 := attachSession(t, l, sender.ID)
	_, client2 := attachSession(t, l, "u2")

	l.route(s1, sender, &Inbound{Type: FrameTypeChat, Content: "heck this"})

	frame := readFrame(t, client1)
	if frame["type"] != FrameTypeError || frame["message"] != "message rejected" {
		t.Fatalf("sender frame = %v, want message rejected error", frame)
	}
	expectNoFrame(t, client2)
}

func TestChatMaskedContentIsBroadcast(t *testing.T) {
	filter := chat.NewWordList(nil, []string{"darn"})
	l := testLobby(t, config.LobbyConfig{}, filter)

	sender := &domain.User{ID: "u1", Name: "One", RemainingMatches: 3}
	s1, client1 := attachSession(t, l, sender.ID)
	_, client2 := attachSession(t, l, "u2")

	l.route(s1, sender, &Inbound{Type: FrameTypeChat, Content: "darn it"})

	for _, client := range []*websocket.Conn{client1, client2} {
		frame := readFrame(t, client)
		if frame["type"] != FrameTypeChat {
			t.Fatalf("frame = %v, want chat", frame)
		}
		if frame["content"] != "**** it" {
			t.Fatalf("content = %v, want masked", frame["content"])
		}
	}
}
