package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/roomops/vcwatch/internal/alert"
)

// Channel delivers one alert transition to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev alert.Event) error
}

// Multi sends through every channel and joins the failures. Used where a
// synchronous all-channels send is wanted (e.g. the test-notification
// endpoint); the dispatcher does its own per-channel retrying fan-out.
type Multi []Channel

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, ev alert.Event) error {
	var err error
	for _, ch := range m {
		if ch == nil {
			continue
		}
		err = multierr.Append(err, ch.Send(ctx, ev))
	}
	return err
}
