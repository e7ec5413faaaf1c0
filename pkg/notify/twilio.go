package notify

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST API used here
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS sends SMS messages through Twilio
type TwilioSMS struct {
	api       messageCreator
	fromPhone string
}

// NewTwilioSMS creates a Twilio SMS transport
func NewTwilioSMS(accountSID, authToken, fromPhone string) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMS{api: client.Api, fromPhone: fromPhone}
}

// Name returns the transport name
func (t *TwilioSMS) Name() string {
	return "twilio"
}

// Send delivers d.Message to the E.164 number in d.ContactInfo
func (t *TwilioSMS) Send(ctx context.Context, d Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(d.ContactInfo)
	params.SetFrom(t.fromPhone)
	params.SetBody(d.Message)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send sms via twilio: %w", err)
	}

	if resp != nil && resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}
