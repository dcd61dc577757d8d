package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// SendSMSInput is the argument object of send_sms.
type SendSMSInput struct {
	To      string `json:"to" jsonschema_description:"Destination phone number in E.164 format."`
	Message string `json:"message" jsonschema_description:"Text to send."`
}

type SendSMSOutput struct {
	OK  bool   `json:"ok"`
	SID string `json:"sid"`
}

var SendSMSInputSchema = GenerateSchema[SendSMSInput]()

func (d *Dispatcher) sendSMSDefinition() Definition {
	return Definition{
		Name:        "send_sms",
		Description: "Send a text message to the caller, for example the clinic address or a reminder they asked for.",
		InputSchema: SendSMSInputSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in SendSMSInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.To) == "" || strings.TrimSpace(in.Message) == "" {
				return nil, &Error{Code: CodeInvalidArguments, Message: "to and message are required"}
			}
			if d.notifier == nil {
				return nil, &Error{Code: CodeFailed, Message: "text messaging is not configured"}
			}
			sid, err := d.notifier.Notify(ctx, in.To, in.Message)
			if err != nil {
				return nil, err
			}
			return SendSMSOutput{OK: true, SID: sid}, nil
		},
	}
}
