package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"acmreport/server/internal/models"
	"acmreport/server/internal/photos"
	"acmreport/server/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	exportFilename = "acm-analysis.json"
	maxImportBytes = 32 << 20
)

// ImportDraft replaces the draft with a record uploaded as JSON. The payload
// is checked against the record schema before it is decoded.
func (h *Handler) ImportDraft(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if err := validateAnalysis(h.schema, body); err != nil {
		h.logger.WithError(err).Warn("Rejected analysis import")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis", "details": err.Error()})
		return
	}

	record := &models.AnalysisRecord{}
	if err := json.Unmarshal(body, record); err != nil {
		h.logger.WithError(err).Warn("Rejected analysis import")
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis", "details": err.Error()})
		return
	}

	h.mu.Lock()
	h.draft = record
	snapshot := record.Clone()
	h.mu.Unlock()

	h.logger.WithField("comparables", len(snapshot.Comparables)).Info("Imported analysis draft")
	h.prefetch(recordPhotos(snapshot)...)
	c.JSON(http.StatusOK, newDraftResponse(snapshot))
}

// ExportDraft downloads the draft in the persistence wire format.
func (h *Handler) ExportDraft(c *gin.Context) {
	data, err := json.MarshalIndent(h.snapshot(), "", "  ")
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode draft")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export analysis"})
		return
	}

	c.Header("Content-Disposition", attachment(exportFilename))
	c.Data(http.StatusOK, "application/json", data)
}

// GetReport compiles the draft and renders it as pdf (default), json or xlsx.
// Photos that cannot be resolved are left out.
func (h *Handler) GetReport(c *gin.Context) {
	format := c.DefaultQuery("format", "pdf")
	record := h.snapshot()

	if format == "xlsx" {
		var buf bytes.Buffer
		if err := report.RenderXLSX(record, &buf); err != nil {
			h.logger.WithError(err).Error("Failed to render spreadsheet")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render spreadsheet"})
			return
		}
		c.Header("Content-Disposition", attachment(report.DefaultSpreadsheetFilename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	if format != "pdf" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported report format %q", format)})
		return
	}

	var set photos.Set
	if h.resolver != nil {
		set = h.resolver.ResolveRecord(c.Request.Context(), record)
	}

	doc, err := report.Compile(record, set)
	if errors.Is(err, report.ErrMissingAddress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "missingFields": record.MissingFields()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to compile report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compile report"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"format": format,
		"pages":  len(doc.Pages),
		"photos": len(set),
	}).Info("Compiled report")

	if format == "json" {
		c.JSON(http.StatusOK, doc)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderPDF(doc, &buf); err != nil {
		h.logger.WithError(err).Error("Failed to render report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
		return
	}
	c.Header("Content-Disposition", attachment(report.DefaultFilename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
