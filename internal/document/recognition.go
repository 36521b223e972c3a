package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Recognizer extracts structured fields from a passport scan. The returned
// keys may use the recognition service's own naming convention.
type Recognizer interface {
	ExtractFields(ctx context.Context, mimeType string, data []byte) (map[string]string, error)
}

// PhotoVerifier checks an identity photo against passport photo rules and
// returns a verdict string ("SUITABLE" on pass).
type PhotoVerifier interface {
	VerifyPhoto(ctx context.Context, mimeType string, data []byte) (string, error)
}

// fieldMapping translates the recognition service's snake_case identifiers
// into the application's camelCase convention. Unmapped keys pass through
// unchanged as long as their value is non-empty.
var fieldMapping = map[string]string{
	"type":            "type",
	"issuing_country": "issuingCountry",
	"passport_no":     "passportNo",
	"surname":         "surname",
	"given_names":     "givenNames",
	"date_of_birth":   "dateOfBirth",
	"date_of_issue":   "dateOfIssue",
	"date_of_expiry":  "dateOfExpiry",
	"sex":             "sex",
	"nationality":     "nationality",
	"personal_no":     "personalNo",
	"authority":       "authority",
	"korean_name":     "koreanName",
}

// NormalizeFields converts recognition output keys to camelCase via the
// fixed mapping table. Keys without a mapping are kept as-is; empty values
// are dropped.
func NormalizeFields(raw map[string]string) map[string]string {
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == "" {
			continue
		}
		if mapped, ok := fieldMapping[key]; ok {
			out[mapped] = value
		} else {
			out[key] = value
		}
	}
	return out
}

// RecognitionClient talks to the external OCR/photo-check service over HTTP.
// It implements both Recognizer and PhotoVerifier.
type RecognitionClient struct {
	baseURL string
	client  *http.Client
}

// NewRecognitionClient creates a client for the recognition service at baseURL.
func NewRecognitionClient(baseURL string) *RecognitionClient {
	return &RecognitionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ExtractFields posts a passport image and returns the raw field map.
func (c *RecognitionClient) ExtractFields(ctx context.Context, mimeType string, data []byte) (map[string]string, error) {
	body, err := c.postImage(ctx, "/extract-passport", mimeType, data)
	if err != nil {
		return nil, err
	}
	var fields map[string]string
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode recognition response: %w", err)
	}
	return fields, nil
}

// VerifyPhoto posts an identity photo and returns the suitability verdict.
func (c *RecognitionClient) VerifyPhoto(ctx context.Context, mimeType string, data []byte) (string, error) {
	body, err := c.postImage(ctx, "/validate-photo", mimeType, data)
	if err != nil {
		return "", err
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode photo verdict: %w", err)
	}
	return resp.Result, nil
}

func (c *RecognitionClient) postImage(ctx context.Context, path, mimeType string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "upload")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call recognition service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognition service returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read recognition response: %w", err)
	}
	return body, nil
}
