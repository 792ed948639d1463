// Package email delivers transactional messages to users.
package email

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Message is a single transactional email.
type Message struct {
	ToAddress string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Dispatcher sends transactional email. Implementations must not retain the
// message after Send returns.
type Dispatcher interface {
	Send(ctx context.Context, message Message) error
}

// LogDispatcher writes messages to the process log instead of sending them.
// It is the fallback when no delivery provider is configured, so local
// development can copy links straight from the log output.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(message.ToAddress) == "" {
		return fmt.Errorf("recipient address is required")
	}
	log.Printf("email to %s: %s\n%s", message.ToAddress, message.Subject, message.TextBody)
	return nil
}

var _ Dispatcher = LogDispatcher{}
