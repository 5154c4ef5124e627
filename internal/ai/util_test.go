package ai

import "testing"

func TestCleanReply(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"quoted roast"`, "quoted roast"},
		{"'single quoted'", "single quoted"},
		{"“smart quoted”", "smart quoted"},
		{"<think>internal monologue</think>actual reply", "actual reply"},
		{"  padded  ", "padded"},
		{"plain", "plain"},
		{`"mismatched'`, `"mismatched'`},
	}
	for _, c := range cases {
		if got := cleanReply(c.in); got != c.want {
			t.Errorf("cleanReply(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsGarbageResponse(t *testing.T) {
	garbage := []string{"", "  ", "ok", "<HTML><body>503</body></html>", "request not allowed"}
	for _, s := range garbage {
		if !isGarbageResponse(s) {
			t.Errorf("%q not flagged as garbage", s)
		}
	}
	if isGarbageResponse("a perfectly fine roast about semicolons") {
		t.Error("valid reply flagged as garbage")
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider("pollinations"); err != nil {
		t.Fatalf("pollinations: %v", err)
	}
	if _, err := NewProvider(""); err != nil {
		t.Fatalf("empty name should default: %v", err)
	}
	if _, err := NewProvider("skynet"); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
