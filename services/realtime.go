package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"

	"github.com/blkluv/dentist-ai/models"
)

const (
	// AudioFormatMulaw matches Twilio media streams: 8kHz mono g711 u-law.
	AudioFormatMulaw = "g711_ulaw"

	maxErrorBody = 4 << 10
)

// GreetingDirective is sent as soon as the model leg opens so the caller
// hears a voice before they say anything.
const GreetingDirective = "Greet the caller warmly, introduce yourself as the clinic's virtual receptionist, and ask how you can help today."

// Instructions returns the fixed behaviour and safety directive for the clinic.
func Instructions(clinicName string) string {
	return strings.Join([]string{
		fmt.Sprintf("You are the friendly phone receptionist for %s, a dental clinic.", clinicName),
		"Keep answers short and conversational; this is a phone call.",
		"Only help with clinic questions, appointment scheduling, and sending text messages to the caller. Politely decline anything else.",
		"Use lookup_knowledge for questions about hours, location, insurance, parking, and new patient visits. Never invent clinic facts.",
		"Use list_appointment_options before offering times, and only offer the times it returns.",
		"Before calling book_appointment, read back the time, the caller's full name, and their phone number, and wait for a clear yes.",
		"Before calling send_sms, confirm the number and the content of the message with the caller.",
		"Never give medical or dental diagnoses. If the caller describes severe pain, swelling, bleeding that won't stop, or trouble breathing, tell them to call 911 or go to the nearest emergency room.",
		"Do not ask for or repeat payment card numbers or social security numbers.",
	}, "\n")
}

// NegotiationError is a non-success reply to the session negotiation request.
type NegotiationError struct {
	StatusCode int
	Body       string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("realtime session negotiation failed: status %d: %s", e.StatusCode, e.Body)
}

// RealtimeConfig holds the credentials and session settings for the model.
// HTTPClient and Dialer default to the standard ones when nil.
type RealtimeConfig struct {
	APIKey       string
	BaseURL      string
	RealtimeURL  string
	Model        string
	Voice        string
	VADThreshold float64
	Instructions string
	Tools        []openai.FunctionDefinition

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// RealtimeClient performs the one-shot session negotiation and opens the
// persistent realtime stream with the credential it returns.
type RealtimeClient struct {
	cfg    RealtimeConfig
	http   *http.Client
	dialer *websocket.Dialer
}

// NewRealtimeClient creates a RealtimeClient from cfg.
func NewRealtimeClient(cfg RealtimeConfig) *RealtimeClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RealtimeClient{cfg: cfg, http: httpClient, dialer: dialer}
}

// SessionRequest builds the negotiation body: codecs, voice, turn detection,
// instructions and every tool schema.
func (c *RealtimeClient) SessionRequest() (models.RealtimeSessionRequest, error) {
	tools, err := RealtimeTools(c.cfg.Tools)
	if err != nil {
		return models.RealtimeSessionRequest{}, err
	}
	req := models.RealtimeSessionRequest{
		Model:             c.cfg.Model,
		Modalities:        []string{"audio", "text"},
		Voice:             c.cfg.Voice,
		Instructions:      c.cfg.Instructions,
		InputAudioFormat:  AudioFormatMulaw,
		OutputAudioFormat: AudioFormatMulaw,
		TurnDetection:     &models.TurnDetection{Type: "server_vad", Threshold: c.cfg.VADThreshold},
		Tools:             tools,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req, nil
}

// Negotiate asks for a short lived session credential. Any non-2xx reply
// comes back as *NegotiationError; there is no retry.
func (c *RealtimeClient) Negotiate(ctx context.Context) (models.RealtimeSessionResponse, error) {
	body, err := c.SessionRequest()
	if err != nil {
		return models.RealtimeSessionResponse{}, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return models.RealtimeSessionResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/realtime/sessions", bytes.NewReader(payload))
	if err != nil {
		return models.RealtimeSessionResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return models.RealtimeSessionResponse{}, fmt.Errorf("realtime session request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return models.RealtimeSessionResponse{}, &NegotiationError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var session models.RealtimeSessionResponse
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return models.RealtimeSessionResponse{}, fmt.Errorf("decode realtime session: %w", err)
	}
	if session.ClientSecret.Value == "" {
		return models.RealtimeSessionResponse{}, &NegotiationError{StatusCode: res.StatusCode, Body: "response carried no client secret"}
	}
	return session, nil
}

// Dial opens the realtime stream authenticated with the negotiated secret.
func (c *RealtimeClient) Dial(ctx context.Context, secret string) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.RealtimeURL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.cfg.Model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+secret)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, res, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial realtime stream: status %d: %w", res.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime stream: %w", err)
	}
	return conn, nil
}

// RealtimeTools flattens chat style function definitions into the realtime
// session tool shape.
func RealtimeTools(defs []openai.FunctionDefinition) ([]models.RealtimeTool, error) {
	out := make([]models.RealtimeTool, 0, len(defs))
	for _, def := range defs {
		params, err := rawParameters(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s parameters: %w", def.Name, err)
		}
		out = append(out, models.RealtimeTool{
			Type:        string(openai.ToolTypeFunction),
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return out, nil
}

func rawParameters(p any) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil:
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}
