package email

import (
	"context"
	"fmt"
	"log"
)

// Sender delivers transactional email. It is independent of in-app
// notifications and carries no consistency guarantee with them.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender is our placeholder email sender.
// Instead of sending a real email, it logs it so flows can be followed without an API key.
type LogSender struct {
	Logger *log.Logger
}

// Send logs the message.
func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Println("====================================================")
	logger.Printf("--- NEW EMAIL (PLACEHOLDER) ---")
	logger.Printf("To: %s", to)
	logger.Printf("Subject: %s", subject)
	logger.Println("--- Body ---")
	logger.Println(body)
	logger.Println("====================================================")
	return nil
}

// SendDecisionEmail tells a user about an approval decision.
func SendDecisionEmail(ctx context.Context, s Sender, to, subject, message string) error {
	if s == nil || to == "" {
		return nil
	}
	body := fmt.Sprintf("Hello,\n\n%s\n\nThe ServeHub team", message)
	return s.Send(ctx, to, subject, body)
}
