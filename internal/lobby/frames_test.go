package lobby

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kickin-server/internal/domain"
)

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"challenge","target_id":"u2"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Type != FrameTypeChallenge || in.TargetID != "u2" {
		t.Fatalf("decoded = %+v", in)
	}
}

func TestDecodeInboundRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"empty object", "{}"},
		{"missing type", `{"content":"hi"}`},
		{"wrong type shape", `{"type":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tt.raw)); !errors.Is(err, domain.ErrBadMessage) {
				t.Fatalf("err = %v, want ErrBadMessage", err)
			}
		})
	}
}

func TestEncodeFrameShapes(t *testing.T) {
	data, err := EncodeFrame(ChallengeInviteFrame{
		Type:      FrameTypeChallengeInvite,
		From:      "u1",
		FromName:  "Player One",
		Timestamp: "2024-01-02T15:04:05+07:00",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != FrameTypeChallengeInvite {
		t.Fatalf("type = %v", decoded["type"])
	}
	if decoded["from"] != "u1" || decoded["from_name"] != "Player One" {
		t.Fatalf("fields = %v", decoded)
	}
}

func TestMatchResultFrameOmitsNilLevelUps(t *testing.T) {
	data, err := EncodeFrame(MatchResultFrame{
		Type:     FrameTypeMatchResult,
		MatchID:  "m1",
		WinnerID: "a",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["winner_level_up"]; ok {
		t.Fatalf("winner_level_up present, want omitted")
	}
	if _, ok := decoded["loser_level_up"]; ok {
		t.Fatalf("loser_level_up present, want omitted")
	}
}
