package port

import "context"

// Mail is a templated message handed to the delivery pipeline.
type Mail struct {
	To       string
	Subject  string
	Template string
	Data     map[string]string
}

// Mailer dispatches mail. Implementations must not block on delivery;
// callers treat dispatch as fire-and-forget and only log failures.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
