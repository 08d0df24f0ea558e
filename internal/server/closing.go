package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	closingdomain "github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/providers/pdf"
)

type startClosingSessionRequest struct {
	EntryIDs []string `json:"entry_ids"`
}

func (s *Server) StartClosingSession(c *gin.Context) {
	var req startClosingSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.closingSvc.StartSession(c.Request.Context(), closingdomain.StartSessionRequest{
		EntryIDs: req.EntryIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClosingSession(c *gin.Context) {
	resp, err := s.closingSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type configureClosingGroupRequest struct {
	MissingPriceBehavior int    `json:"missing_price_behavior"`
	CloseOption          string `json:"close_option"`
	InstallmentCount     int    `json:"installment_count"`
	FirstDueDate         string `json:"first_due_date"`
	OverrideDueDate      string `json:"override_due_date"`
}

func (s *Server) ConfigureClosingGroup(c *gin.Context) {
	var req configureClosingGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	firstDueDate, err := parseOptionalDate(req.FirstDueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("first_due_date", "invalid_first_due_date", "invalid first_due_date"))
		return
	}
	overrideDueDate, err := parseOptionalDate(req.OverrideDueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("override_due_date", "invalid_override_due_date", "invalid override_due_date"))
		return
	}

	resp, err := s.closingSvc.Configure(c.Request.Context(), closingdomain.ConfigureGroupRequest{
		SessionID: strings.TrimSpace(c.Param("id")),
		Config: closingdomain.GroupConfig{
			MissingPriceBehavior: closingdomain.MissingPriceBehavior(req.MissingPriceBehavior),
			CloseOption:          closingdomain.CloseOption(strings.TrimSpace(req.CloseOption)),
			InstallmentCount:     req.InstallmentCount,
			FirstDueDate:         firstDueDate,
			OverrideDueDate:      overrideDueDate,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitClosingGroup(c *gin.Context) {
	resp, err := s.closingSvc.Submit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		// The view carries the failure message and the unchanged group
		// index; the mapped status tells the operator what went wrong.
		status, payload := mapError(err)
		c.JSON(status, gin.H{"data": resp, "error": payload})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelClosingSession(c *gin.Context) {
	resp, err := s.closingSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RenderClosingSummary produces the PDF recap of a finished or in-progress
// session: one row per confirmed closure.
func (s *Server) RenderClosingSummary(c *gin.Context) {
	view, err := s.closingSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	f := s.formatter()
	grand := decimal.Zero
	rows := make([]pdf.SummaryRow, 0, len(view.ClosedGroups))
	for _, closed := range view.ClosedGroups {
		amount, parseErr := decimal.NewFromString(closed.Amount)
		if parseErr == nil {
			grand = grand.Add(amount)
		}
		rows = append(rows, pdf.SummaryRow{
			ClientName: closed.ClientName,
			InvoiceID:  closed.InvoiceID,
			Amount:     f.Amount(amount),
			ClosedAt:   f.Date(closed.ClosedAt),
		})
	}

	doc, err := s.pdfSvc.GenerateClosingSummary(c.Request.Context(), pdf.SummaryData{
		OrgName:     s.cfg.AppName,
		SessionID:   view.ID,
		GeneratedAt: f.Date(time.Now().UTC()),
		Rows:        rows,
		GrandTotal:  f.Amount(grand),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="closing-summary-`+view.ID+`.pdf"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, doc)
}

func isClosingValidationError(err error) bool {
	switch err {
	case closingdomain.ErrInvalidEntryID,
		closingdomain.ErrInvalidBehavior,
		closingdomain.ErrInvalidCloseOption:
		return true
	default:
		return false
	}
}
