package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// messageCreator is the slice of the Twilio REST API the notifier uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSNotifier sends text messages through Twilio's Messages API
type SMSNotifier struct {
	api  messageCreator
	from string
}

// NewSMSNotifier sends messages from the given number with the account's REST credentials.
func NewSMSNotifier(accountSID, authToken, from string) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSNotifier{api: client.Api, from: from}
}

// Notify sends message to the given number and returns the message SID.
func (n *SMSNotifier) Notify(ctx context.Context, to, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(message)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("send sms to %s: %w", to, err)
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("send sms: response carried no message sid")
	}
	return *resp.Sid, nil
}

// StreamTwiML answers an incoming call by connecting its audio to the media
// stream at streamURL. params are passed through to the stream's start event.
func StreamTwiML(streamURL string, params map[string]string) (string, error) {
	stream := &twiml.VoiceStream{Url: streamURL}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stream.InnerElements = append(stream.InnerElements, &twiml.VoiceParameter{Name: name, Value: params[name]})
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	return twiml.Voice([]twiml.Element{connect})
}

// FallbackTwiML apologises and, when a number is configured, hands the
// call to a human.
func FallbackTwiML(message, number string) (string, error) {
	verbs := []twiml.Element{&twiml.VoiceSay{Message: message}}
	if number != "" {
		verbs = append(verbs, &twiml.VoiceDial{Number: number})
	} else {
		verbs = append(verbs, &twiml.VoiceHangup{})
	}
	return twiml.Voice(verbs)
}
