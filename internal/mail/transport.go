// internal/mail/transport.go
package mail

import "context"

// Transport delivers one rendered message to one recipient.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}
