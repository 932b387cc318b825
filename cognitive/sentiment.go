package cognitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// SentimentClient talks to the text-analytics sentiment service. Scores
// run from 0 (negative) to 1 (positive).
type SentimentClient struct {
	// Endpoint is the service base URL, without a trailing slash.
	Endpoint string

	// APIKey is sent in the subscription-key header.
	APIKey string

	httpClient *http.Client
}

// NewSentimentClient builds a client for the given service endpoint.
func NewSentimentClient(endpoint, apiKey string) *SentimentClient {
	return &SentimentClient{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKey:     apiKey,
		httpClient: sharedHTTPClient,
	}
}

type sentimentDocument struct {
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

type sentimentRequest struct {
	Documents []sentimentDocument `json:"documents"`
}

type sentimentResponse struct {
	Documents []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"documents"`
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Score rates the sentiment of text in [0, 1]. Out-of-range service
// responses are clamped and reported through the warning machinery
// rather than silently passed on.
func (c *SentimentClient) Score(ctx context.Context, text, language string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.NewValueError("SentimentClient.Score", "text must not be empty")
	}

	body, err := json.Marshal(sentimentRequest{
		Documents: []sentimentDocument{{ID: "1", Language: language, Text: text}},
	})
	if err != nil {
		return 0, errors.Wrap(err, "attrition: failed to encode sentiment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/sentiment", bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "attrition: failed to build sentiment request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(subscriptionKeyHeader, c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "attrition: sentiment request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "attrition: failed to read sentiment response")
	}

	if resp.StatusCode != http.StatusOK {
		if languageRefused(string(respBody)) {
			return 0, errors.NewLanguageNotSupportedError("text analytics", language)
		}
		return 0, errors.NewAPIError("text analytics", resp.StatusCode, "", strings.TrimSpace(string(respBody)))
	}

	var result sentimentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, errors.Wrap(err, "attrition: failed to decode sentiment response")
	}

	if len(result.Errors) > 0 {
		message := result.Errors[0].Message
		if languageRefused(message) {
			return 0, errors.NewLanguageNotSupportedError("text analytics", language)
		}
		return 0, errors.NewAPIError("text analytics", resp.StatusCode, "", message)
	}
	if len(result.Documents) == 0 {
		return 0, errors.NewAPIError("text analytics", resp.StatusCode, "", "empty sentiment response")
	}

	score := result.Documents[0].Score
	if score < 0 || score > 1 {
		clamped := score
		if clamped < 0 {
			clamped = 0
		} else if clamped > 1 {
			clamped = 1
		}
		errors.Warn(errors.NewDataConversionWarning(
			"service sentiment score", "unit interval score",
			fmt.Sprintf("value %g outside [0,1] was clamped", score)))
		score = clamped
	}

	log.GetLoggerWithName("cognitive.sentiment").Debug("scored text",
		"language", language,
		"chars", len(text),
		"score", score,
	)
	return score, nil
}

// languageRefused spots unsupported-language wording in an error payload.
func languageRefused(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "language not supported") ||
		strings.Contains(lower, "supplied language") ||
		strings.Contains(lower, "language is not supported")
}

// SentimentLabeler turns sentiment scores into attrition labels. A score
// below Threshold reads as negative feedback, so the attrition label is
// positive.
type SentimentLabeler struct {
	// Threshold is the score below which feedback counts as negative.
	Threshold float64
}

// NewSentimentLabeler returns a labeler with the 0.5 default threshold.
func NewSentimentLabeler() *SentimentLabeler {
	return &SentimentLabeler{Threshold: 0.5}
}

// WithThreshold sets the decision threshold.
func (l *SentimentLabeler) WithThreshold(threshold float64) *SentimentLabeler {
	l.Threshold = threshold
	return l
}

// Label maps a score onto "Yes" (likely to leave) or "No".
func (l *SentimentLabeler) Label(score float64) string {
	if score < l.Threshold {
		return "Yes"
	}
	return "No"
}
