package queue

import (
	"context"
	"errors"
)

// Direct hands notifications straight to a Mailer.  It is used when no
// broker is configured.
type Direct struct {
	Mailer Mailer
}

// Send delivers n synchronously.
func (d Direct) Send(ctx context.Context, n Notification) error {
	if n.To == "" {
		return errors.New("notification has no recipient")
	}
	return d.Mailer.Send(ctx, n.To, n.ToName, n.Subject, n.Body)
}
