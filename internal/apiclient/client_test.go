package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"acmreport/server/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(srv.URL+"/", time.Second, logger)
}

func testRecord() *models.AnalysisRecord {
	r := models.NewAnalysisRecord(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	r.ClientName = "Ana"
	r.AdvisorName = "Luis"
	r.Address = "Calle 1 234"
	r.AddComparable()
	_ = r.UpdateComparableField(0, "price", 100000.0)
	_ = r.UpdateComparableField(0, "builtArea", 50.0)
	return r
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient("  ", 0, nil)
	assert.False(t, c.Enabled())

	_, err := c.CreateAnalysis(context.Background(), testRecord())
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.ListAnalyses(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.GetAnalysis(context.Background(), "1")
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestCreateAnalysis_Success(t *testing.T) {
	record := testRecord()
	var received models.AnalysisRecord

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/acm", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Trace-ID"))
		assert.NoError(t, err)

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))

		var stored map[string]any
		assert.NoError(t, json.Unmarshal(body, &stored))
		stored["_id"] = "65f0c0ffee"
		stored["createdAt"] = "2024-03-05T12:00:00.000Z"
		stored["date"] = "2024-03-05T00:00:00.000Z"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(stored)
	})

	stored, err := c.CreateAnalysis(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, *record, received)
	assert.Equal(t, "65f0c0ffee", stored.ID)
	assert.Equal(t, record, stored.Record)
}

func TestCreateAnalysis_Failures(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedMessage string
	}{
		{
			name:            "String message",
			status:          http.StatusBadRequest,
			body:            `{"message":"clientName is required"}`,
			expectedMessage: "clientName is required",
		},
		{
			name:            "List of messages",
			status:          http.StatusBadRequest,
			body:            `{"message":["email must be an email","phone should not be empty"]}`,
			expectedMessage: "email must be an email; phone should not be empty",
		},
		{
			name:            "No message",
			status:          http.StatusInternalServerError,
			body:            `{}`,
			expectedMessage: "Error al crear el análisis",
		},
		{
			name:            "Body is not JSON",
			status:          http.StatusBadGateway,
			body:            `<html>bad gateway</html>`,
			expectedMessage: "Error al crear el análisis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			record := testRecord()
			before := record.Clone()

			_, err := c.CreateAnalysis(context.Background(), record)
			var subErr *SubmissionError
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, tt.status, subErr.StatusCode)
			assert.Equal(t, tt.expectedMessage, subErr.Error())
			assert.Equal(t, 1, calls)
			assert.Equal(t, before, record)
		})
	}
}

func TestCreateAnalysis_AcceptedWithUnreadableBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		expectedID string
	}{
		{
			name:       "Too many comparables",
			body:       `{"_id":"abc","comparables":[{},{},{},{},{}]}`,
			expectedID: "abc",
		},
		{
			name:       "Bad date",
			body:       `{"id":"def","date":"not a date"}`,
			expectedID: "def",
		},
		{
			name:       "Body is not JSON",
			body:       `created`,
			expectedID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(tt.body))
			})

			record := testRecord()
			stored, err := c.CreateAnalysis(context.Background(), record)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.expectedID, stored.ID)
			assert.Equal(t, record, stored.Record)
		})
	}
}

func TestCreateAnalysis_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	c.logger.SetOutput(io.Discard)

	_, err := c.CreateAnalysis(context.Background(), testRecord())
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Zero(t, subErr.StatusCode)
	assert.NotNil(t, subErr.Unwrap())
}

func TestListAnalyses(t *testing.T) {
	tests := []struct {
		name          string
		advisor       string
		client        string
		expectedQuery string
	}{
		{name: "No filters", expectedQuery: ""},
		{name: "Advisor only", advisor: "Luis", expectedQuery: "advisorName=Luis"},
		{name: "Both filters", advisor: "Luis", client: "Ana María", expectedQuery: "advisorName=Luis&clientName=Ana+Mar%C3%ADa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/acm", r.URL.Path)
				assert.Equal(t, tt.expectedQuery, r.URL.RawQuery)
				w.Write([]byte(`[{"id":7,"clientName":"Ana"},{"_id":"abc","clientName":"Bea"}]`))
			})

			analyses, err := c.ListAnalyses(context.Background(), tt.advisor, tt.client)
			require.NoError(t, err)
			require.Len(t, analyses, 2)
			assert.Equal(t, "7", analyses[0].ID)
			assert.Equal(t, "Ana", analyses[0].Record.ClientName)
			assert.Equal(t, models.DefaultPropertyType, analyses[0].Record.PropertyType)
			assert.Equal(t, models.DefaultCondition, analyses[0].Record.Condition)
			assert.Equal(t, "abc", analyses[1].ID)
		})
	}
}

func TestGetAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acm/abc" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"ACM analysis not found"}`))
			return
		}
		w.Write([]byte(`{"_id":"abc","clientName":"Ana","comparables":[{"price":10,"builtArea":2}]}`))
	})

	stored, err := c.GetAnalysis(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.ID)
	require.Len(t, stored.Record.Comparables, 1)
	assert.Equal(t, 5.0, stored.Record.Comparables[0].PricePerM2)

	_, err = c.GetAnalysis(context.Background(), "missing")
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusNotFound, subErr.StatusCode)
	assert.Equal(t, "ACM analysis not found", subErr.Message)
}

func TestStoredAnalysis_MarshalJSON(t *testing.T) {
	stored := StoredAnalysis{ID: "abc", Record: testRecord()}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	var decoded StoredAnalysis
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, stored, decoded)
	assert.True(t, bytes.Contains(data, []byte(`"id":"abc"`)))
}
