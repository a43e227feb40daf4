package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/resilience"
)

// HTTPSender delivers email through an EmailJS-compatible REST API.
type HTTPSender struct {
	URL        string
	ServiceID  string
	TemplateID string
	UserID     string
	From       string
	Client     resilience.HTTPClient
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send implements common.EmailSender.
func (s HTTPSender) Send(ctx context.Context, email common.Email) error {
	if s.URL == "" || s.ServiceID == "" || s.TemplateID == "" {
		return errors.New("email api not configured")
	}
	params := map[string]string{
		"to_email":     email.To,
		"cc_email":     email.CC,
		"subject":      email.Subject,
		"message_html": email.HTML,
		"message_text": email.Text,
	}
	if s.From != "" {
		params["from_email"] = s.From
	}
	for k, v := range email.Params {
		params[k] = v
	}
	body, err := json.Marshal(sendRequest{
		ServiceID:      s.ServiceID,
		TemplateID:     s.TemplateID,
		UserID:         s.UserID,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.Client.DoJSON(ctx, req, nil); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
