// Package codegen provides the Ollama code-generation adapter. It turns a
// compiled query plan into a pandas script via the /api/generate endpoint.
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// OllamaAdapter implements ports.CodeGenerator using an Ollama chat model.
type OllamaAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAdapter creates a new Ollama code-generation adapter.
func NewOllamaAdapter(baseURL, model string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen2.5-coder:7b"
	}
	return &OllamaAdapter{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// GenerateCode asks the model for a pandas script implementing the plan.
func (a *OllamaAdapter) GenerateCode(ctx context.Context, plan *entities.Plan, question string, candidate entities.Candidate) (string, error) {
	prompt, err := buildPrompt(plan, question, candidate)
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	reqBody := ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: false,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	code := stripCodeFences(genResp.Response)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("Ollama returned empty code")
	}
	return code, nil
}

// buildPrompt serializes the plan and the candidate's schema into an
// instruction the model can follow without guessing column names.
func buildPrompt(plan *entities.Plan, question string, candidate entities.Candidate) (string, error) {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}

	var schema strings.Builder
	for _, col := range candidate.Columns {
		colType := candidate.Types[col]
		fmt.Fprintf(&schema, "- %s (%s)\n", col, colType)
	}

	var b strings.Builder
	b.WriteString("You are a data analyst. Write a Python pandas script that answers the question below.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Table: %s / %s\n", candidate.FileName, candidate.SheetName)
	fmt.Fprintf(&b, "Columns:\n%s\n", schema.String())
	fmt.Fprintf(&b, "Query plan (follow it exactly):\n%s\n\n", planJSON)
	b.WriteString("Rules:\n")
	b.WriteString("- The DataFrame is already loaded in a variable named df.\n")
	b.WriteString("- Use only the column names listed above, exactly as written.\n")
	b.WriteString("- Print the final result with print().\n")
	b.WriteString("- Output only Python code, no explanations.\n")
	return b.String(), nil
}

// stripCodeFences removes a surrounding markdown code block if the model
// wrapped its answer in one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		return ""
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
