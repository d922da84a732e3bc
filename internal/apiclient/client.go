package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"acmreport/server/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrDisabled is returned by every call when no API base URL is configured.
var ErrDisabled = errors.New("analysis submission is disabled: no API URL configured")

// SubmissionError is a failed call to the persistence API. Message is meant
// to be shown to the user as is.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// StoredAnalysis is a record as returned by the API, with its server-assigned id.
type StoredAnalysis struct {
	ID     string
	Record *models.AnalysisRecord
}

func (s StoredAnalysis) MarshalJSON() ([]byte, error) {
	record := s.Record
	if record == nil {
		record = &models.AnalysisRecord{}
	}
	return json.Marshal(struct {
		ID string `json:"id"`
		*models.AnalysisRecord
	}{ID: s.ID, AnalysisRecord: record})
}

func (s *StoredAnalysis) UnmarshalJSON(data []byte) error {
	id, err := responseID(data)
	if err != nil {
		return err
	}
	record := &models.AnalysisRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return err
	}

	s.ID = id
	s.Record = record
	return nil
}

// responseID reads the server-assigned id, found under "id" or "_id".
func responseID(data []byte) (string, error) {
	var ids struct {
		ID      any `json:"id"`
		MongoID any `json:"_id"`
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return "", err
	}
	if id := idString(ids.ID); id != "" {
		return id, nil
	}
	return idString(ids.MongoID), nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

// Client talks to the external analysis persistence API. A client built
// with an empty base URL is disabled and fails every call with ErrDisabled.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// CreateAnalysis stores the record. The call is made once; a failure is
// returned as a *SubmissionError and nothing is retried. Once the API has
// accepted the record the call succeeds even if the response body cannot be
// decoded; the returned analysis then carries the submitted record and
// whatever id could be read.
func (c *Client) CreateAnalysis(ctx context.Context, record *models.AnalysisRecord) (*StoredAnalysis, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	var raw json.RawMessage
	if err := c.call(ctx, "CreateAnalysis", http.MethodPost, "/acm", bytes.NewReader(body), "Error al crear el análisis", &raw); err != nil {
		return nil, err
	}

	var stored StoredAnalysis
	if err := json.Unmarshal(raw, &stored); err != nil {
		id, _ := responseID(raw)
		c.logger.WithFields(logrus.Fields{
			"component": "ApiClient",
			"method":    "CreateAnalysis",
			"id":        id,
		}).WithError(err).Warn("Analysis was stored but the response could not be decoded")
		return &StoredAnalysis{ID: id, Record: record.Clone()}, nil
	}
	return &stored, nil
}

// ListAnalyses returns stored analyses, optionally filtered by advisor and client name.
func (c *Client) ListAnalyses(ctx context.Context, advisorName, clientName string) ([]StoredAnalysis, error) {
	params := url.Values{}
	if advisorName != "" {
		params.Set("advisorName", advisorName)
	}
	if clientName != "" {
		params.Set("clientName", clientName)
	}
	path := "/acm"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var analyses []StoredAnalysis
	if err := c.call(ctx, "ListAnalyses", http.MethodGet, path, nil, "Error al obtener los análisis", &analyses); err != nil {
		return nil, err
	}
	if analyses == nil {
		analyses = []StoredAnalysis{}
	}
	return analyses, nil
}

func (c *Client) GetAnalysis(ctx context.Context, id string) (*StoredAnalysis, error) {
	var stored StoredAnalysis
	if err := c.call(ctx, "GetAnalysis", http.MethodGet, "/acm/"+url.PathEscape(id), nil, "Error al obtener el análisis", &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) call(ctx context.Context, method, httpMethod, path string, body io.Reader, defaultMessage string, out any) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	traceID := uuid.NewString()
	log := c.logger.WithFields(logrus.Fields{
		"component": "ApiClient",
		"method":    method,
		"trace_id":  traceID,
	})
	log.WithField("path", path).Debug("Sending request to analysis API")

	resp, err := c.doRequest(ctx, httpMethod, c.baseURL+path, body, traceID)
	if err != nil {
		log.WithError(err).Error("Failed to perform request to analysis API")
		return &SubmissionError{Message: defaultMessage, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("Failed to read response from analysis API")
		return &SubmissionError{StatusCode: resp.StatusCode, Message: defaultMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		subErr := &SubmissionError{StatusCode: resp.StatusCode, Message: errorMessage(data, defaultMessage)}
		log.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     subErr.Message,
		}).Error("Received error response from analysis API")
		return subErr
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
	} else if err := json.Unmarshal(data, out); err != nil {
		log.WithError(err).Error("Failed to decode response from analysis API")
		return &SubmissionError{StatusCode: resp.StatusCode, Message: defaultMessage, Err: err}
	}

	log.WithField("status_code", resp.StatusCode).Info("Analysis API request succeeded")
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader, traceID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Trace-ID", traceID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// errorMessage extracts the "message" of an error body. The message may be a
// string or a list of strings; anything else yields the default.
func errorMessage(body []byte, defaultMessage string) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return defaultMessage
	}

	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return defaultMessage
		}
		return single
	}

	var list []string
	if err := json.Unmarshal(payload.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return defaultMessage
}
