package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:embed prompts/product_description.txt
var productDescriptionPrompt string

const maxRetries = 3

// Describer writes catalogue descriptions for inventory items from their photos.
type Describer interface {
	Name() string
	DescribeProduct(ctx context.Context, imageData []byte, productName string) (*ProductDescription, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// ProductDescription is the structured answer of a Describer.
type ProductDescription struct {
	Description string   `json:"description"`
	Material    string   `json:"material"`
	Style       string   `json:"style"`
	Tags        []string `json:"tags"`
}

// Text renders the description as stored on the inventory row.
func (d *ProductDescription) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(d.Description))
	var details []string
	if d.Material != "" && d.Material != "unknown" {
		details = append(details, "Material: "+d.Material)
	}
	if d.Style != "" && d.Style != "unknown" {
		details = append(details, "Style: "+d.Style)
	}
	if len(d.Tags) > 0 {
		details = append(details, "Tags: "+strings.Join(d.Tags, ", "))
	}
	if len(details) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(details, ". "))
	}
	return b.String()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

func (u *Usage) track(inputTokens, outputTokens int64, pricing RequestPricing) {
	u.InputTokens += int(inputTokens)
	u.OutputTokens += int(outputTokens)
	u.TotalCost += float64(inputTokens) / 1_000_000 * pricing.Input
	u.TotalCost += float64(outputTokens) / 1_000_000 * pricing.Output
}

func buildUserMessage(productName string) string {
	if strings.TrimSpace(productName) == "" {
		return "Describe this product."
	}
	return fmt.Sprintf("The product is listed as %q. Describe it.", productName)
}

// parseProductDescription decodes a model answer, tolerating a surrounding markdown fence.
func parseProductDescription(content string) (*ProductDescription, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var desc ProductDescription
	if err := json.Unmarshal([]byte(content), &desc); err != nil {
		return nil, fmt.Errorf("failed to parse description JSON: %w", err)
	}
	if strings.TrimSpace(desc.Description) == "" {
		return nil, errors.New("description is empty")
	}
	return &desc, nil
}

func retryFeedback(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. "+
		"Remember to escape quotes inside strings with backslash.", err)
}
