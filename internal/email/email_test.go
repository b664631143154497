package email

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func TestSendDecisionEmailLogsBody(t *testing.T) {
	var buf bytes.Buffer
	sender := LogSender{Logger: log.New(&buf, "", 0)}

	if err := SendDecisionEmail(context.Background(), sender, "vol@example.com", "Participation accepted", "You are in."); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"To: vol@example.com", "Subject: Participation accepted", "You are in."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestSendDecisionEmailSkipsWithoutRecipient(t *testing.T) {
	var buf bytes.Buffer
	if err := SendDecisionEmail(context.Background(), LogSender{Logger: log.New(&buf, "", 0)}, "", "s", "m"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged, got %q", buf.String())
	}
	if err := SendDecisionEmail(context.Background(), nil, "a@example.com", "s", "m"); err != nil {
		t.Fatalf("nil sender: %v", err)
	}
}
