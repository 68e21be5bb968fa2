package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/swaasthya/saathi/internal/policy"
	"github.com/swaasthya/saathi/internal/reliability"
)

const (
	twilioService     = "twilio"
	twilioSendTimeout = 20 * time.Second
)

// messageCreator is the slice of the Twilio API used for replies.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioMessenger sends WhatsApp replies through the Twilio Messages API.
type TwilioMessenger struct {
	api  messageCreator
	from string
}

func NewTwilioMessenger(accountSID, authToken, from string) *TwilioMessenger {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	// CreateMessage takes no context; the HTTP timeout bounds a stuck call.
	client.SetTimeout(twilioSendTimeout)
	return &TwilioMessenger{api: client.Api, from: from}
}

// Send returns as soon as ctx ends. The request itself keeps running until
// the client timeout, because the Twilio SDK cannot cancel it.
func (m *TwilioMessenger) Send(ctx context.Context, reply Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(reply.To)
	params.SetFrom(m.from)
	if reply.Body != "" {
		params.SetBody(reply.Body)
	}
	if reply.MediaURL != "" {
		params.SetMediaUrl([]string{reply.MediaURL})
	}

	type result struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := m.api.CreateMessage(params)
		done <- result{msg, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return reliability.Upstream(twilioService, "send", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		var restErr *twclient.TwilioRestError
		if errors.As(res.err, &restErr) {
			return reliability.HTTPStatusError(twilioService, "send", restErr.Status, restErr.Message)
		}
		return reliability.Upstream(twilioService, "send", res.err)
	}
	sid := ""
	if res.msg != nil && res.msg.Sid != nil {
		sid = *res.msg.Sid
	}
	slog.Debug("twilio message sent", "to", policy.RedactAddress(reply.To), "sid", sid, "media", reply.MediaURL != "")
	return nil
}

// SignatureValidator checks the X-Twilio-Signature header of webhooks.
type SignatureValidator struct {
	validator twclient.RequestValidator
}

func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twclient.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the full public URL and the
// posted form parameters.
func (v *SignatureValidator) Valid(fullURL string, form url.Values, signature string) bool {
	if strings.TrimSpace(signature) == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return v.validator.Validate(fullURL, params, signature)
}

// ParseWebhookForm turns a Twilio WhatsApp webhook payload into an event.
// Only the first media item is considered.
func ParseWebhookForm(form url.Values, now time.Time) (InboundEvent, error) {
	from := strings.TrimSpace(form.Get("From"))
	if from == "" {
		return InboundEvent{}, fmt.Errorf("missing From")
	}
	id := strings.TrimSpace(form.Get("MessageSid"))
	if id == "" {
		id = strings.TrimSpace(form.Get("SmsMessageSid"))
	}
	if id == "" {
		id = uuid.NewString()
	}
	ev := InboundEvent{
		ID:         id,
		From:       from,
		Body:       form.Get("Body"),
		ReceivedAt: now.UTC(),
	}
	if n, _ := strconv.Atoi(strings.TrimSpace(form.Get("NumMedia"))); n > 0 {
		ev.MediaURL = strings.TrimSpace(form.Get("MediaUrl0"))
		ev.MediaContentType = strings.TrimSpace(form.Get("MediaContentType0"))
	}
	return ev, nil
}
