package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"paperqa/internal/domain"
)

// LlamaParseClient extracts layout-aware text from PDFs through the
// LlamaParse HTTP API. Parsing is asynchronous on the server side: the
// client uploads the file, then polls the job until it completes.
type LlamaParseClient struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

// NewLlamaParseClient creates a client reading its API key from the
// given environment variable.
func NewLlamaParseClient(apiKeyEnv, baseURL string) (*LlamaParseClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	return &LlamaParseClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		pollInterval: 2 * time.Second,
	}, nil
}

type parseJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type parseResult struct {
	Markdown string `json:"markdown"`
}

// Parse uploads the document and waits for the extracted markdown.
func (p *LlamaParseClient) Parse(ctx context.Context, filename string, data []byte) (string, error) {
	jobID, err := p.upload(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	for {
		job, err := p.jobStatus(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrParse, err)
		}

		switch job.Status {
		case "SUCCESS":
			text, err := p.result(ctx, jobID)
			if err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrParse, err)
			}
			return text, nil
		case "ERROR", "CANCELLED":
			return "", fmt.Errorf("%w: parse job %s failed: %s", domain.ErrParse, jobID, job.Error)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrParse, ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *LlamaParseClient) upload(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/parsing/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	var job parseJob
	if err := p.do(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("upload returned no job id")
	}
	return job.ID, nil
}

func (p *LlamaParseClient) jobStatus(ctx context.Context, jobID string) (*parseJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/parsing/job/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	var job parseJob
	if err := p.do(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (p *LlamaParseClient) result(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/parsing/job/"+jobID+"/result/markdown", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	var res parseResult
	if err := p.do(req, &res); err != nil {
		return "", err
	}
	return res.Markdown, nil
}

func (p *LlamaParseClient) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview)
	}

	return json.Unmarshal(body, out)
}
