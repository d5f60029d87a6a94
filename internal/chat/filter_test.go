package chat

import "testing"

func TestPassthrough(t *testing.T) {
	verdict, out := Passthrough{}.Check("anything goes here")
	if verdict != Clean {
		t.Fatalf("verdict = %d, want Clean", verdict)
	}
	if out != "anything goes here" {
		t.Fatalf("content changed: %q", out)
	}
}

func TestWordList(t *testing.T) {
	f := NewWordList([]string{"scam"}, []string{"darn", "heck"})

	tests := []struct {
		name        string
		in          string
		wantVerdict Verdict
		wantOut     string
	}{
		{"clean", "good game everyone", Clean, "good game everyone"},
		{"masked word", "that was darn close", Filtered, "that was **** close"},
		{"masked with punctuation", "heck!", Filtered, "*****"},
		{"blocked word", "this is a scam", Rejected, ""},
		{"blocked wins over mask", "darn scam", Rejected, ""},
		{"case insensitive block", "SCAM alert", Rejected, ""},
		{"case insensitive mask", "DARN", Filtered, "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, out := f.Check(tt.in)
			if verdict != tt.wantVerdict {
				t.Fatalf("verdict = %d, want %d", verdict, tt.wantVerdict)
			}
			if out != tt.wantOut {
				t.Fatalf("out = %q, want %q", out, tt.wantOut)
			}
		})
	}
}
