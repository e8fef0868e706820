// Package notify holds the outbound notification contract and its
// implementations.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Dispatcher hands a rendered message to an outbound channel. A nil
// error means the channel accepted the message.
type Dispatcher interface {
	Send(ctx context.Context, destination, message string) error
}

// TwilioDispatcher sends SMS messages through the Twilio REST API.
type TwilioDispatcher struct {
	httpClient *resty.Client
	accountSID string
	fromNumber string
	logger     *zap.Logger
}

// NewTwilioDispatcher creates a Twilio-backed SMS dispatcher.
func NewTwilioDispatcher(accountSID, authToken, fromNumber string, logger *zap.Logger) *TwilioDispatcher {
	client := resty.New().
		SetBaseURL("https://api.twilio.com/2010-04-01").
		SetTimeout(15 * time.Second).
		SetBasicAuth(accountSID, authToken)

	return &TwilioDispatcher{
		httpClient: client,
		accountSID: accountSID,
		fromNumber: fromNumber,
		logger:     logger,
	}
}

func (d *TwilioDispatcher) Send(ctx context.Context, destination, message string) error {
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   destination,
			"From": d.fromNumber,
			"Body": message,
		}).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", d.accountSID))
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio rejected message: status %d: %s", resp.StatusCode(), resp.String())
	}

	d.logger.Debug("sms dispatched",
		zap.String("to", destination),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}

// LogDispatcher logs messages instead of sending them; used in
// development when no Twilio credentials are configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, destination, message string) error {
	d.logger.Info("sms dispatch (dry run)",
		zap.String("to", destination),
		zap.String("message", message),
	)
	return nil
}
