// Package telephony wraps the Twilio REST API for outbound call placement.
package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// ErrInvalidNumber marks a dial rejected because the destination number is not
// a valid E.164 number (Twilio error 21211).
var ErrInvalidNumber = errors.New("invalid phone number")

// Client places outbound calls through Twilio.
type Client struct {
	api    *twilio.RestClient
	logger *zap.Logger
}

// NewClient creates a Twilio-backed dialer.
func NewClient(accountSID, authToken string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{api: api, logger: logger}
}

// PlaceCall dispatches one outbound call. Twilio fetches call instructions from
// callbackURL once the callee picks up. The Twilio SDK does not thread contexts
// through its HTTP layer, so ctx only gates the call on entry.
func (c *Client) PlaceCall(ctx context.Context, to, from, callbackURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(callbackURL)
	params.SetMethod("POST")

	call, err := c.api.Api.CreateCall(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) && restErr.Code == 21211 {
			return fmt.Errorf("%w: %s", ErrInvalidNumber, to)
		}
		return fmt.Errorf("create call: %w", err)
	}

	sid := ""
	if call.Sid != nil {
		sid = *call.Sid
	}
	c.logger.Info("call dispatched", zap.String("to", to), zap.String("call_sid", sid))
	return nil
}
