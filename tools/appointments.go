package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blkluv/dentist-ai/models"
)

// ListOptionsInput filters list_appointment_options. Empty fields match every slot.
type ListOptionsInput struct {
	Date     string `json:"date,omitempty" jsonschema_description:"Preferred day, e.g. Wednesday or 2025-01-15."`
	Provider string `json:"provider,omitempty" jsonschema_description:"Preferred dentist, e.g. Dr. Lee."`
	Window   string `json:"window,omitempty" jsonschema:"enum=morning,enum=afternoon" jsonschema_description:"Preferred time of day."`
}

type ListOptionsOutput struct {
	Slots []models.AppointmentSlot `json:"slots"`
}

// BookInput is the argument object of book_appointment.
type BookInput struct {
	SlotID string `json:"slot_id" jsonschema_description:"The id of the slot returned by list_appointment_options."`
	Name   string `json:"name" jsonschema_description:"Patient's full name."`
	Phone  string `json:"phone" jsonschema_description:"Patient's mobile number in E.164 format, e.g. +15551234567."`
	Reason string `json:"reason,omitempty" jsonschema_description:"Short reason for the visit."`
}

type BookOutput struct {
	OK               bool   `json:"ok"`
	SlotID           string `json:"slot_id"`
	Label            string `json:"label"`
	ConfirmationSent bool   `json:"confirmation_sent"`
}

var (
	ListOptionsInputSchema = GenerateSchema[ListOptionsInput]()
	BookInputSchema        = GenerateSchema[BookInput]()
)

func (d *Dispatcher) listOptionsDefinition() Definition {
	return Definition{
		Name:        "list_appointment_options",
		Description: "List open appointment slots. Always call this before offering times to the caller.",
		InputSchema: ListOptionsInputSchema,
		Handler: func(_ context.Context, args json.RawMessage) (any, error) {
			var in ListOptionsInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if !d.filterOptions {
				return ListOptionsOutput{Slots: d.ref.AllSlots()}, nil
			}
			return ListOptionsOutput{Slots: d.ref.FilterSlots(in.Date, in.Provider, in.Window)}, nil
		},
	}
}

func (d *Dispatcher) bookDefinition() Definition {
	return Definition{
		Name:        "book_appointment",
		Description: "Book one of the slots returned by list_appointment_options after the caller has confirmed the time, their name, and their phone number.",
		InputSchema: BookInputSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in BookInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return d.book(ctx, in)
		},
	}
}

// book never mutates the slot list: every known slot can be booked any number of times.
func (d *Dispatcher) book(ctx context.Context, in BookInput) (BookOutput, error) {
	slot, ok := d.ref.FindSlot(strings.TrimSpace(in.SlotID))
	if !ok {
		return BookOutput{}, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no slot with id %q", in.SlotID)}
	}

	out := BookOutput{OK: true, SlotID: slot.ID, Label: slot.Label}
	if d.notifier == nil || strings.TrimSpace(in.Phone) == "" {
		return out, nil
	}

	msg := fmt.Sprintf("Hi %s, your appointment at %s is confirmed for %s. Reply or call us if you need to reschedule.",
		firstName(in.Name), d.ref.ClinicName, slot.Label)
	sid, err := d.notifier.Notify(ctx, in.Phone, msg)
	if err != nil {
		// the booking stands even if the confirmation text doesn't go out
		d.logger.Warn("booking confirmation not sent", "slot_id", slot.ID, "error", err)
		return out, nil
	}
	d.logger.Info("booking confirmation sent", "slot_id", slot.ID, "sid", sid)
	out.ConfirmationSent = true
	return out, nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
