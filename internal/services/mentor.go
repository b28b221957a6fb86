package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smaehq/smae-backend/internal/logger"
)

// EvidenceAnalysis is what the model returns about a submitted proof. It is
// advisory only: the user still decides pass/fail themselves.
type EvidenceAnalysis struct {
	Passed      bool     `json:"passed"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

type CurriculumStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Exercise    string `json:"exercise"`
}

type MicroCurriculum struct {
	SkillName string           `json:"skill_name"`
	Level     int              `json:"level"`
	Steps     []CurriculumStep `json:"steps"`
}

type MentorService interface {
	AnalyzeEvidence(ctx context.Context, skillName string, level int, evidenceType, evidence string) (*EvidenceAnalysis, error)
	GenerateMicroCurriculum(ctx context.Context, skillName string, level int) (*MicroCurriculum, error)
}

type mentorService struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewMentorService(log *logger.Logger) (MentorService, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 60
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &mentorService{
		log:        log.With("service", "MentorService"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

func (ms *mentorService) AnalyzeEvidence(ctx context.Context, skillName string, level int, evidenceType, evidence string) (*EvidenceAnalysis, error) {
	system := "You are a strict skill-mastery mentor. The user self-reports evidence for a skill level. " +
		"Evaluate it honestly: level 1 is exposure, level 2 guided practice, level 3 autonomous execution, level 4 consolidated mastery. " +
		"Be skeptical of vague evidence. Respond with JSON only: " +
		`{"passed": bool, "score": int 0-10, "feedback": string, "suggestions": [string]}`
	user := fmt.Sprintf("Skill: %s\nAttempted level: %d\nEvidence type: %s\nEvidence:\n%s", skillName, level, evidenceType, evidence)

	raw, err := ms.chatJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var analysis EvidenceAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if analysis.Score < 0 {
		analysis.Score = 0
	}
	if analysis.Score > 10 {
		analysis.Score = 10
	}
	return &analysis, nil
}

func (ms *mentorService) GenerateMicroCurriculum(ctx context.Context, skillName string, level int) (*MicroCurriculum, error) {
	system := "You are a skill-mastery mentor. Produce a short, concrete practice plan for reaching the requested level. " +
		"Respond with JSON only: " +
		`{"skill_name": string, "level": int, "steps": [{"title": string, "description": string, "exercise": string}]}. ` +
		"Between 3 and 5 steps, each with a verifiable exercise."
	user := fmt.Sprintf("Skill: %s\nTarget level: %d", skillName, level)

	raw, err := ms.chatJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var curriculum MicroCurriculum
	if err := json.Unmarshal(raw, &curriculum); err != nil {
		return nil, fmt.Errorf("failed to parse curriculum: %w", err)
	}
	if curriculum.SkillName == "" {
		curriculum.SkillName = skillName
	}
	if curriculum.Level == 0 {
		curriculum.Level = level
	}
	return &curriculum, nil
}

type mentorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *mentorHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *mentorHTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 408 || httpErr.StatusCode == 429 {
			return true
		}
		return httpErr.StatusCode >= 500 && httpErr.StatusCode <= 599
	}
	return false
}

// chatJSON calls the chat completions endpoint in JSON mode and returns the
// raw message content.
func (ms *mentorService) chatJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	payload := map[string]any{
		"model": ms.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= ms.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		raw, err := ms.doRequest(ctx, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return nil, err
		}
		ms.log.Warn("Mentor request failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (ms *mentorService) doRequest(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ms.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ms.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &mentorHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty completion response")
	}
	return json.RawMessage(parsed.Choices[0].Message.Content), nil
}
