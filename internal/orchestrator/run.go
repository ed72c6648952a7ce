package orchestrator

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// RetryNotice is shown when a turn could not be processed and the user
// should repeat themselves.
const RetryNotice = "Sorry, I didn't catch that. Could you say it again?"

// Conversation is the voice/UI side of a session.
type Conversation interface {
	// Listen blocks until the user says something. io.EOF ends the conversation.
	Listen(ctx context.Context) (string, error)
	// Present shows the assistant prompt and the committed document.
	Present(ctx context.Context, r *TurnResult) error
}

// Run drives a session until it completes, the conversation ends or ctx is
// cancelled. Cancelling while awaiting input ends the loop without side
// effects.
func (o *Orchestrator) Run(ctx context.Context, id string, conv Conversation) error {
	res, err := o.Begin(ctx, id)
	if err != nil {
		return err
	}

	for {
		if err := conv.Present(ctx, res); err != nil {
			return err
		}
		if res.State == StateComplete {
			return nil
		}

		text, err := conv.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		next, err := o.HandleUtterance(ctx, id, text)
		switch {
		case err == nil:
			res = next
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrTurnRetryable):
			log.Warn().Err(err).Str("session", id).Msg("Turn not processed, asking the user to repeat")
			again := *res
			again.Notice = RetryNotice
			res = &again
		default:
			return err
		}
	}
}
