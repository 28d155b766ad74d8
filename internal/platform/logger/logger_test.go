package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"session_id", "session_0123",
		"bearer_token", "abc.def.ghi",
		"activity_id", "a-1",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("len=%d, want 7", len(out))
	}
	if out[1] == "session_0123" || len(out[1].(string)) != 12 {
		t.Fatalf("session_id not hashed: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("token not redacted: %v", out[3])
	}
	if out[5] != "a-1" {
		t.Fatalf("activity_id changed: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key lost: %v", out[6])
	}
}

func TestHashValueStable(t *testing.T) {
	if hashValue("x") != hashValue("x") {
		t.Fatal("hash is not deterministic")
	}
	if hashValue("") != "" {
		t.Fatal("empty value should stay empty")
	}
}
