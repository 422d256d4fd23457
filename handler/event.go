package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

var (
	errEmptyEvent = errors.New("empty event")
	errEmptyBody  = errors.New("empty body")
	errMalformed  = errors.New("malformed event")
)

// inbound is the transport-neutral form of a user message.
type inbound struct {
	Sender string
	Text   string
}

// flexString accepts a JSON string or number; phone numbers arrive as both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// messageDetail is the EventBridge detail emitted by the messaging webhook.
type messageDetail struct {
	Sender      flexString `json:"sender"`
	IncomingMsg flexString `json:"incoming_msg"`
}

// messageBody covers the body shapes posted directly by the webhook:
// {"detail": {...}}, {"sender", "text"} and {"data": {"sender", "text"}}.
type messageBody struct {
	Detail *messageDetail `json:"detail"`
	Sender flexString     `json:"sender"`
	Text   flexString     `json:"text"`
	Data   *struct {
		Sender flexString `json:"sender"`
		Text   flexString `json:"text"`
	} `json:"data"`
}

func (b messageBody) inbound() inbound {
	if b.Detail != nil {
		return b.Detail.inbound()
	}
	in := inbound{Sender: string(b.Sender), Text: string(b.Text)}
	if b.Data != nil {
		if in.Sender == "" {
			in.Sender = string(b.Data.Sender)
		}
		if b.Data.Text != "" {
			in.Text = string(b.Data.Text)
		}
	}
	return in
}

func (d messageDetail) inbound() inbound {
	return inbound{Sender: string(d.Sender), Text: string(d.IncomingMsg)}
}

// envelope peeks at the keys that tell the event sources apart.
type envelope struct {
	Detail json.RawMessage `json:"detail"`
	Body   *string         `json:"body"`
}

// decodeEvent extracts the message from an EventBridge event, an API
// Gateway proxy request or a direct invocation. headers are only present
// for API Gateway.
func decodeEvent(raw []byte) (inbound, map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
		return inbound{}, nil, errEmptyEvent
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return inbound{}, nil, errMalformed
	}

	switch {
	case len(env.Detail) > 0 && !bytes.Equal(env.Detail, []byte("null")):
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return inbound{}, nil, errMalformed
		}
		var d messageDetail
		if err := json.Unmarshal(ev.Detail, &d); err != nil {
			return inbound{}, nil, errMalformed
		}
		return d.inbound(), nil, nil

	case env.Body != nil:
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return inbound{}, nil, errMalformed
		}
		body := req.Body
		if req.IsBase64Encoded {
			dec, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				return inbound{}, req.Headers, errMalformed
			}
			body = string(dec)
		}
		in, err := decodeBody([]byte(body))
		return in, req.Headers, err

	default:
		in, err := decodeBody(raw)
		return in, nil, err
	}
}

// decodeBody parses a webhook body. A body that is itself a JSON string is
// unwrapped once.
func decodeBody(body []byte) (inbound, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return inbound{}, errEmptyBody
	}
	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return inbound{}, errMalformed
		}
		return decodeBody([]byte(s))
	}
	var b messageBody
	if err := json.Unmarshal(body, &b); err != nil {
		return inbound{}, errMalformed
	}
	in := b.inbound()
	in.Sender = strings.TrimSpace(in.Sender)
	return in, nil
}
