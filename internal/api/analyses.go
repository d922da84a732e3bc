package api

import (
	"net/http"

	"acmreport/server/internal/apiclient"

	"github.com/gin-gonic/gin"
)

// SubmitDraft stores the draft through the persistence API. The draft is
// left unchanged whatever the outcome.
func (h *Handler) SubmitDraft(c *gin.Context) {
	if !h.submissionEnabled() {
		respondError(c, apiclient.ErrDisabled)
		return
	}

	record := h.snapshot()
	if !record.IsReadyForSubmission() {
		c.JSON(http.StatusConflict, gin.H{
			"error":         "Analysis is not ready for submission",
			"missingFields": record.MissingFields(),
		})
		return
	}

	stored, err := h.store.CreateAnalysis(c.Request.Context(), record)
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit analysis")
		respondError(c, err)
		return
	}

	h.logger.WithField("id", stored.ID).Info("Submitted analysis")
	c.JSON(http.StatusCreated, stored)
}

func (h *Handler) ListAnalyses(c *gin.Context) {
	if !h.submissionEnabled() {
		respondError(c, apiclient.ErrDisabled)
		return
	}

	analyses, err := h.store.ListAnalyses(c.Request.Context(), c.Query("advisorName"), c.Query("clientName"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list analyses")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, analyses)
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	if !h.submissionEnabled() {
		respondError(c, apiclient.ErrDisabled)
		return
	}

	stored, err := h.store.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithError(err).WithField("id", c.Param("id")).Error("Failed to get analysis")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"submissionEnabled": h.submissionEnabled(),
	})
}

func (h *Handler) submissionEnabled() bool {
	return h.store != nil && h.store.Enabled()
}
