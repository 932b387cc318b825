package cognitive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// Translator service error codes for unsupported languages.
const (
	codeInvalidSourceLanguage = 400035
	codeInvalidTargetLanguage = 400036
)

// refusalPhrases mark a payload that apologizes instead of translating.
// A hit means the language pair did not really work, whatever the
// status code said.
var refusalPhrases = []string{
	"unable to translate",
	"cannot translate",
	"language is not supported",
	"language not supported",
}

// TranslationClient talks to the translation service.
type TranslationClient struct {
	// Endpoint is the service base URL, without a trailing slash.
	Endpoint string

	// APIKey is sent in the subscription-key header.
	APIKey string

	httpClient *http.Client
}

// NewTranslationClient builds a client for the given service endpoint.
func NewTranslationClient(endpoint, apiKey string) *TranslationClient {
	return &TranslationClient{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKey:     apiKey,
		httpClient: sharedHTTPClient,
	}
}

type translateRequest struct {
	Text string `json:"Text"`
}

type translateResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type serviceError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate converts text between languages. An empty from lets the
// service detect the source. Unsupported languages surface as
// LanguageNotSupportedError, read from the service error code or from a
// refusal found in the payload itself.
func (c *TranslationClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.NewValueError("TranslationClient.Translate", "text must not be empty")
	}
	if to == "" {
		return "", errors.NewValueError("TranslationClient.Translate", "target language must not be empty")
	}

	query := url.Values{}
	query.Set("api-version", "3.0")
	if from != "" {
		query.Set("from", from)
	}
	query.Set("to", to)
	endpoint := c.Endpoint + "/translate?" + query.Encode()

	body, err := json.Marshal([]translateRequest{{Text: text}})
	if err != nil {
		return "", errors.Wrap(err, "attrition: failed to encode translation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "attrition: failed to build translation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(subscriptionKeyHeader, c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "attrition: translation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "attrition: failed to read translation response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, respBody, from, to)
	}

	var results []translateResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return "", errors.Wrap(err, "attrition: failed to decode translation response")
	}
	if len(results) == 0 || len(results[0].Translations) == 0 {
		return "", errors.NewAPIError("translator", resp.StatusCode, "", "empty translation response")
	}

	translated := results[0].Translations[0].Text
	if refused(translated) {
		return "", errors.NewLanguageNotSupportedError("translator", from)
	}

	log.GetLoggerWithName("cognitive.translator").Debug("translated text",
		"from", from,
		"to", to,
		"chars_in", len(text),
		"chars_out", len(translated),
	)
	return translated, nil
}

// statusError maps a non-200 response onto a typed error.
func (c *TranslationClient) statusError(status int, body []byte, from, to string) error {
	var svcErr serviceError
	if err := json.Unmarshal(body, &svcErr); err == nil && svcErr.Error.Code != 0 {
		switch svcErr.Error.Code {
		case codeInvalidSourceLanguage:
			return errors.NewLanguageNotSupportedError("translator", from)
		case codeInvalidTargetLanguage:
			return errors.NewLanguageNotSupportedError("translator", to)
		}
		return errors.NewAPIError("translator", status,
			strconv.Itoa(svcErr.Error.Code), svcErr.Error.Message)
	}
	return errors.NewAPIError("translator", status, "", strings.TrimSpace(string(body)))
}

// refused scans a payload for apology phrases in place of a translation.
func refused(payload string) bool {
	lower := strings.ToLower(payload)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
