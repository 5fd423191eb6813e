package dlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entity is one named-entity span reported by the external classifier.
// Offsets are byte positions into the scanned text.
type Entity struct {
	Type  string  `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Classifier detects named-entity spans in text. The production
// implementation calls an external model service; the scanner treats it as a
// black box returning spans and confidence scores.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Entity, error)
}

// NopClassifier detects nothing. Used when no classifier service is
// configured; pattern scanning still runs.
type NopClassifier struct{}

func (NopClassifier) Classify(context.Context, string) ([]Entity, error) {
	return nil, nil
}

// classifierEntities is the fixed entity menu requested from the service.
var classifierEntities = []string{
	"PERSON",
	"EMAIL_ADDRESS",
	"PHONE_NUMBER",
	"CREDIT_CARD",
	"US_SSN",
	"US_PASSPORT",
	"LOCATION",
	"DATE_TIME",
	"IBAN_CODE",
	"IP_ADDRESS",
	"CRYPTO",
	"MEDICAL_LICENSE",
	"URL",
}

// HTTPClassifier calls a remote entity-classification service.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier constructs a classifier client with a seconds-scale
// timeout; a slow model service must not stall the pipeline indefinitely.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Entities []string `json:"entities"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(classifyRequest{
		Text:     text,
		Language: "en",
		Entities: classifierEntities,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var entities []Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return entities, nil
}
