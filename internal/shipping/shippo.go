package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/resilience"
)

// Address is a postal address in the carrier's wire format.
type Address struct {
	Name    string `json:"name" validate:"required"`
	Street1 string `json:"street1" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
}

// Label is a purchased shipping label.
type Label struct {
	TransactionID  string `json:"transactionId"`
	LabelURL       string `json:"labelUrl"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
	ETA            string `json:"eta,omitempty"`
	FileType       string `json:"fileType"`
}

// Carrier quotes rates and buys labels.
type Carrier interface {
	Rates(ctx context.Context, from, to Address, parcel Parcel) ([]Rate, error)
	CreateLabel(ctx context.Context, rateID, fileType string) (Label, error)
}

// ErrCarrier wraps carrier responses that did not succeed.
var ErrCarrier = errors.New("shipping: carrier request failed")

// ShippoClient talks to the Shippo REST API.
type ShippoClient struct {
	baseURL string
	apiKey  string
	http    resilience.HTTPClient
}

// NewShippoClient constructs a ShippoClient.
func NewShippoClient(baseURL, apiKey string, client resilience.HTTPClient) *ShippoClient {
	if baseURL == "" {
		baseURL = "https://api.goshippo.com"
	}
	return &ShippoClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

type shippoMessage struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type shippoRate struct {
	ObjectID      string `json:"object_id"`
	Amount        string `json:"amount"`
	Provider      string `json:"provider"`
	ProviderImage string `json:"provider_image_75"`
	EstimatedDays *int   `json:"estimated_days"`
	DurationTerms string `json:"duration_terms"`
	ServiceLevel  struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	} `json:"servicelevel"`
}

// Rates creates a synchronous shipment and returns its rates.
func (c *ShippoClient) Rates(ctx context.Context, from, to Address, parcel Parcel) ([]Rate, error) {
	var resp struct {
		Status   string          `json:"status"`
		Rates    []shippoRate    `json:"rates"`
		Messages []shippoMessage `json:"messages"`
	}
	err := c.post(ctx, "/shipments/", map[string]any{
		"address_from": from,
		"address_to":   to,
		"parcels":      []Parcel{parcel},
		"async":        false,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: shipment status %q%s", ErrCarrier, resp.Status, messages(resp.Messages))
	}
	out := make([]Rate, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		price, err := decimal.NewFromString(r.Amount)
		if err != nil {
			continue
		}
		rate := Rate{
			ID:            r.ObjectID,
			Service:       r.ServiceLevel.Name,
			Provider:      r.Provider,
			Price:         price,
			Days:          "3-5",
			ProviderImage: r.ProviderImage,
			ServiceToken:  r.ServiceLevel.Token,
		}
		if rate.Service == "" {
			rate.Service = "Standard"
		}
		if r.EstimatedDays != nil {
			rate.Days = strconv.Itoa(*r.EstimatedDays)
		}
		out = append(out, rate)
	}
	return out, nil
}

// CreateLabel purchases a label for a previously quoted rate.
func (c *ShippoClient) CreateLabel(ctx context.Context, rateID, fileType string) (Label, error) {
	if fileType == "" {
		fileType = "PDF"
	}
	var resp struct {
		ObjectID            string          `json:"object_id"`
		Status              string          `json:"status"`
		LabelURL            string          `json:"label_url"`
		TrackingNumber      string          `json:"tracking_number"`
		TrackingURLProvider string          `json:"tracking_url_provider"`
		ETA                 string          `json:"eta"`
		Messages            []shippoMessage `json:"messages"`
	}
	err := c.post(ctx, "/transactions/", map[string]any{
		"rate":            rateID,
		"label_file_type": fileType,
		"async":           false,
	}, &resp)
	if err != nil {
		return Label{}, err
	}
	if resp.Status != "SUCCESS" {
		return Label{}, fmt.Errorf("%w: transaction status %q%s", ErrCarrier, resp.Status, messages(resp.Messages))
	}
	return Label{
		TransactionID:  resp.ObjectID,
		LabelURL:       resp.LabelURL,
		TrackingNumber: resp.TrackingNumber,
		TrackingURL:    resp.TrackingURLProvider,
		ETA:            resp.ETA,
		FileType:       fileType,
	}, nil
}

func (c *ShippoClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "ShippoToken "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.http.DoJSON(ctx, req, out)
}

func messages(msgs []shippoMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Text)
	}
	return ": " + strings.Join(parts, "; ")
}
