package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"shipcompliance-backend/models"

	"golang.org/x/sync/errgroup"
)

const (
	generationAPI  = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent"
	maxRetries     = 3
	initialBackoff = time.Second

	// Ceiling on concurrent per-section evaluations for one request.
	maxSectionWorkers = 20
)

var (
	ErrNoJSONFound      = errors.New("no JSON object found in model reply")
	ErrGenerationFailed = errors.New("failed to generate content")
)

// apiStatusError is a non-200 reply from the generative API. Client errors
// are not retried.
type apiStatusError struct {
	code int
	body string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.code, e.body)
}

func (e *apiStatusError) permanent() bool {
	switch e.code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return true
	}
	return false
}

// ComplianceService evaluates shipments against regulation sections or
// route-scoped rules by prompting the external generative API. Every failure
// path degrades into a well-formed EvaluationResult with diagnostic text;
// Evaluate* methods never return an error, because callers run them inside
// worker pools where one fault must not abort sibling tasks.
type ComplianceService struct {
	keyring    *Keyring
	httpClient *http.Client
	endpoint   string
}

// ComplianceServiceOption is a functional option for ComplianceService
type ComplianceServiceOption func(*ComplianceService)

// ComplianceWithKeyring sets the credential rotator used by the
// all-sections fan-out
func ComplianceWithKeyring(k *Keyring) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.keyring = k
	}
}

// ComplianceWithHTTPClient overrides the HTTP client
func ComplianceWithHTTPClient(c *http.Client) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.httpClient = c
	}
}

// ComplianceWithEndpoint overrides the generative API endpoint
func ComplianceWithEndpoint(url string) ComplianceServiceOption {
	return func(s *ComplianceService) {
		s.endpoint = url
	}
}

// NewComplianceService creates a new compliance service
func NewComplianceService(opts ...ComplianceServiceOption) *ComplianceService {
	s := &ComplianceService{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   generationAPI,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateSection checks one shipment against one regulation section.
func (s *ComplianceService) EvaluateSection(ctx context.Context, section *models.RegulationSection, shipment any, apiKey string) *models.EvaluationResult {
	prompt := buildSectionPrompt(section, marshalForPrompt(shipment))
	return s.evaluate(ctx, prompt, apiKey)
}

// EvaluateRules checks one shipment against a route's rule list.
func (s *ComplianceService) EvaluateRules(ctx context.Context, rules []string, shipment any, apiKey string) *models.EvaluationResult {
	prompt := buildRulesPrompt(rules, marshalForPrompt(shipment))
	return s.evaluate(ctx, prompt, apiKey)
}

// EvaluateAllSections runs one evaluation per document section concurrently,
// bounded by maxSectionWorkers. Results keep document order. Each task draws
// its own credential from the keyring.
func (s *ComplianceService) EvaluateAllSections(ctx context.Context, doc *models.RegulationDocument, shipment any) []models.SectionResult {
	results := make([]models.SectionResult, len(doc.Sections))

	if s.keyring == nil {
		for i := range doc.Sections {
			results[i] = models.SectionResult{
				Section:    doc.Sections[i].Name,
				Compliance: models.FailedEvaluationResult("No API credentials configured for compliance evaluation"),
			}
		}
		return results
	}

	g := new(errgroup.Group)
	workers := len(doc.Sections)
	if workers > maxSectionWorkers {
		workers = maxSectionWorkers
	}
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range doc.Sections {
		i := i
		g.Go(func() error {
			section := &doc.Sections[i]
			results[i] = models.SectionResult{
				Section:    section.Name,
				Compliance: s.EvaluateSection(ctx, section, shipment, s.keyring.Next()),
			}
			return nil
		})
	}
	g.Wait()

	return results
}

// evaluate runs the prompt and converts every outcome, good or bad, into a
// well-formed result.
func (s *ComplianceService) evaluate(ctx context.Context, prompt, apiKey string) *models.EvaluationResult {
	text, err := s.generate(ctx, prompt, apiKey)
	if err != nil {
		log.Printf("Warning: generative API call failed: %v", err)
		return models.FailedEvaluationResult(fmt.Sprintf("Error processing compliance check: %v", err))
	}
	return parseReply(text)
}

// generate calls the generative API with retry and exponential backoff.
func (s *ComplianceService) generate(ctx context.Context, prompt, apiKey string) (string, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}

		text, err := s.callGenerationAPI(ctx, prompt, apiKey)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var statusErr *apiStatusError
		if errors.As(err, &statusErr) && statusErr.permanent() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// callGenerationAPI performs one HTTP round trip to the generative API.
func (s *ComplianceService) callGenerationAPI(ctx context.Context, prompt, apiKey string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"topK":            40,
			"topP":            0.95,
			"maxOutputTokens": 1500,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &apiStatusError{code: resp.StatusCode, body: string(bodyBytes)}
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
		Error struct {
			Code    int    `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason)
	}

	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", ErrGenerationFailed
	}

	return result, nil
}

// parseReply extracts and decodes the JSON verdict from a free-text model
// reply, back-filling any missing fields.
func parseReply(text string) *models.EvaluationResult {
	jsonStr, err := ExtractJSON(text)
	if err != nil {
		log.Printf("Warning: no JSON found in model reply: %.200s", text)
		return models.FailedEvaluationResult("Failed to parse model response: no JSON object found in reply")
	}

	var result models.EvaluationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		log.Printf("Warning: malformed JSON in model reply: %v", err)
		return models.FailedEvaluationResult(fmt.Sprintf("Failed to parse model response: %v", err))
	}

	result.Normalize()
	return &result
}

// ExtractJSON locates the JSON object inside a model reply: first a fenced
// ```json block, then any fenced block, then the outermost {...} span.
// Returns ErrNoJSONFound when none of those match.
func ExtractJSON(text string) (string, error) {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], nil
	}

	return "", ErrNoJSONFound
}

// marshalForPrompt renders the shipment fields as indented JSON for prompt
// embedding.
func marshalForPrompt(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// buildSectionPrompt embeds one regulation section and the shipment fields.
func buildSectionPrompt(section *models.RegulationSection, shipmentJSON string) string {
	checklist, err := json.MarshalIndent(section.Checklist, "", "  ")
	if err != nil {
		checklist = []byte("[]")
	}

	return fmt.Sprintf(`You are a Senior International Compliance Officer with 15+ years of experience in global shipping regulations.
Analyze the following shipment details against regulatory requirements with extreme attention to detail.

REGULATORY FRAMEWORK:
%s

COMPLIANCE CHECKLIST:
%s

SHIPMENT DETAILS FOR INSPECTION:
%s

TASK: Conduct a thorough, critical compliance analysis as a Senior Compliance Officer would.

Format your response as a JSON object with the following structure:
{
    "compliant": boolean,
    "compliance_score": number,
    "risk_level": string,
    "reasons": [],
    "violations": [],
    "suggestions": [],
    "additional_requirements": [],
    "officer_notes": string
}

"compliant" is true only if fully compliant. "compliance_score" rates compliance from 0-100.
"risk_level" is one of "High", "Medium", "Low", or "None". "reasons" lists specific compliance
findings (both positive and negative) with regulation references where applicable. "violations"
lists specific rules violated, if any. "suggestions" gives actionable steps to resolve each
violation. "additional_requirements" lists extra permits, forms or documentation needed.
"officer_notes" is professional insight from your experience with similar cases.

Ensure your analysis is thorough, strict, and identifies ALL potential compliance issues.
Be extremely attentive to details that might be overlooked.`,
		section.Content,
		string(checklist),
		shipmentJSON,
	)
}

// buildRulesPrompt embeds a route's rule list and the shipment fields.
func buildRulesPrompt(rules []string, shipmentJSON string) string {
	rulesJSON, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		rulesJSON = []byte("[]")
	}

	return fmt.Sprintf(`You are a compliance expert for international shipments. Analyze the following shipment against these compliance rules:

SHIPMENT DETAILS:
%s

COMPLIANCE RULES:
%s

Evaluate if this shipment is compliant with these rules. Provide a structured analysis with these exact fields:
- compliant: true/false
- compliance_score: 0-100
- risk_level: "Low", "Medium", or "High"
- violations: [list specific violations if any]
- reasons: [detailed explanations for each violation or compliance concern]
- suggestions: [actionable steps to resolve compliance issues]
- additional_requirements: [any extra documentation or steps needed]
- officer_notes: [professional expert opinion written from first person perspective of a compliance officer with 15+ years experience]

Return your response as a valid JSON object with these exact keys.`,
		shipmentJSON,
		string(rulesJSON),
	)
}
