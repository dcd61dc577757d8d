package tools

import (
	"context"
	"encoding/json"
)

// LookupInput is the argument object of lookup_knowledge.
type LookupInput struct {
	Question string `json:"question" jsonschema_description:"The caller's question, in their own words."`
}

type LookupOutput struct {
	Answer string `json:"answer"`
}

var LookupInputSchema = GenerateSchema[LookupInput]()

func (d *Dispatcher) lookupDefinition() Definition {
	return Definition{
		Name:        "lookup_knowledge",
		Description: "Answer a general question about the clinic: office hours, address and directions, accepted insurance, parking, or new patient visits.",
		InputSchema: LookupInputSchema,
		Handler: func(_ context.Context, args json.RawMessage) (any, error) {
			var in LookupInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return LookupOutput{Answer: d.ref.Answer(in.Question)}, nil
		},
	}
}
