package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"acmreport/server/internal/apiclient"
	"acmreport/server/internal/models"
	"acmreport/server/internal/photos"
	"acmreport/server/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"
)

// PhotoResolver turns the photos of a record into embeddable data.
type PhotoResolver interface {
	ResolveRecord(ctx context.Context, record *models.AnalysisRecord) photos.Set
}

// PhotoQueue accepts photo references to resolve ahead of report compilation.
type PhotoQueue interface {
	Push(refs ...models.PhotoReference) error
}

// AnalysisStore is the external persistence API.
type AnalysisStore interface {
	Enabled() bool
	CreateAnalysis(ctx context.Context, record *models.AnalysisRecord) (*apiclient.StoredAnalysis, error)
	ListAnalyses(ctx context.Context, advisorName, clientName string) ([]apiclient.StoredAnalysis, error)
	GetAnalysis(ctx context.Context, id string) (*apiclient.StoredAnalysis, error)
}

// Handler serves the draft analysis being edited. There is a single draft
// per process; every mutation holds the draft lock for its duration.
type Handler struct {
	logger   *logrus.Logger
	resolver PhotoResolver
	queue    PhotoQueue
	store    AnalysisStore
	schema   *jsonschema.Schema
	now      func() time.Time

	mu    sync.Mutex
	draft *models.AnalysisRecord
}

type FieldUpdate struct {
	Name  string `json:"name" binding:"required"`
	Value any    `json:"value"`
}

type ComparableUpdate struct {
	Field string `json:"field" binding:"required"`
	Value any    `json:"value"`
}

type DraftResponse struct {
	Record        *models.AnalysisRecord `json:"record"`
	Ready         bool                   `json:"ready"`
	MissingFields []string               `json:"missingFields"`
	Aggregates    report.Aggregates      `json:"aggregates"`
}

func newDraftResponse(record *models.AnalysisRecord) DraftResponse {
	missing := record.MissingFields()
	if missing == nil {
		missing = []string{}
	}
	return DraftResponse{
		Record:        record,
		Ready:         record.IsReadyForSubmission(),
		MissingFields: missing,
		Aggregates:    report.ComputeAggregates(record.Comparables),
	}
}

func NewHandler(resolver PhotoResolver, queue PhotoQueue, store AnalysisStore, logger *logrus.Logger) (*Handler, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	schema, err := compileAnalysisSchema()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		logger:   logger,
		resolver: resolver,
		queue:    queue,
		store:    store,
		schema:   schema,
		now:      time.Now,
	}
	h.draft = models.NewAnalysisRecord(h.now())
	return h, nil
}

// snapshot returns a copy of the draft that is safe to use without the lock.
func (h *Handler) snapshot() *models.AnalysisRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draft.Clone()
}

func (h *Handler) GetDraft(c *gin.Context) {
	c.JSON(http.StatusOK, newDraftResponse(h.snapshot()))
}

func (h *Handler) ResetDraft(c *gin.Context) {
	h.mu.Lock()
	h.draft = models.NewAnalysisRecord(h.now())
	record := h.draft.Clone()
	h.mu.Unlock()

	h.logger.Info("Draft analysis reset")
	c.JSON(http.StatusOK, newDraftResponse(record))
}

func (h *Handler) UpdateField(c *gin.Context) {
	var req FieldUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.mu.Lock()
	err := h.draft.SetField(req.Name, req.Value)
	record := h.draft.Clone()
	h.mu.Unlock()

	if err != nil {
		h.logger.WithError(err).WithField("field", req.Name).Warn("Rejected field update")
		respondError(c, err)
		return
	}

	if isPhotoField(req.Name) {
		h.prefetch(record.MainPhoto)
	}
	c.JSON(http.StatusOK, newDraftResponse(record))
}

func (h *Handler) ToggleService(c *gin.Context) {
	name := c.Param("name")

	h.mu.Lock()
	enabled := h.draft.ToggleService(name)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"name": name, "enabled": enabled})
}

func (h *Handler) AddComparable(c *gin.Context) {
	h.mu.Lock()
	length := h.draft.AddComparable()
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"length": length})
}

func (h *Handler) RemoveComparable(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comparable index"})
		return
	}

	h.mu.Lock()
	removed := h.draft.RemoveComparable(index)
	length := len(h.draft.Comparables)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"removed": removed, "length": length})
}

func (h *Handler) UpdateComparable(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comparable index"})
		return
	}

	var req ComparableUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.mu.Lock()
	err = h.draft.UpdateComparableField(index, req.Field, req.Value)
	record := h.draft.Clone()
	h.mu.Unlock()

	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"index": index,
			"field": req.Field,
		}).Warn("Rejected comparable update")
		respondError(c, err)
		return
	}

	if req.Field == "photo" {
		h.prefetch(record.Comparables[index].Photo)
	}
	c.JSON(http.StatusOK, newDraftResponse(record))
}

// prefetch hands photo references to the background resolver. A full or
// closed queue only means the photo is resolved when the report is built.
func (h *Handler) prefetch(refs ...models.PhotoReference) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Push(refs...); err != nil {
		h.logger.WithError(err).Warn("Could not queue photos for prefetch")
	}
}

func isPhotoField(name string) bool {
	switch name {
	case "mainPhoto", "mainPhotoUrl", "mainPhotoBase64":
		return true
	}
	return false
}

func recordPhotos(record *models.AnalysisRecord) []models.PhotoReference {
	refs := []models.PhotoReference{record.MainPhoto}
	for _, c := range record.Comparables {
		refs = append(refs, c.Photo)
	}
	return refs
}

func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var submissionErr *apiclient.SubmissionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.Is(err, models.ErrComparableNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownField), errors.Is(err, models.ErrDerivedField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apiclient.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &submissionErr):
		status := http.StatusBadGateway
		if submissionErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": submissionErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
