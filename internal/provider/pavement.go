package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// PavementImage is one road segment photo sent for classification
type PavementImage struct {
	Name string
	Data io.Reader
}

// PavementClient forwards segment photos to the pavement condition model
type PavementClient struct {
	url  string
	http *http.Client
}

func NewPavementClient(predictURL string, client *http.Client) *PavementClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &PavementClient{url: predictURL, http: client}
}

// Predict posts images as repeated "files" parts and returns the model's JSON verbatim
func (c *PavementClient) Predict(ctx context.Context, images []PavementImage) (json.RawMessage, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: pavement: predict URL not configured", ErrUpstream)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, img := range images {
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("segment_%d.jpg", i)
		}
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			return nil, fmt.Errorf("pavement: failed to create form part: %w", err)
		}
		if _, err := io.Copy(part, img.Data); err != nil {
			return nil, fmt.Errorf("pavement: failed to copy image %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("pavement: failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("pavement: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out json.RawMessage
	if err := doJSON(c.http, req, "pavement", &out); err != nil {
		return nil, err
	}
	return out, nil
}
