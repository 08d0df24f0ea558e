package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	"github.com/sphera-erp/sphera/pkg/db/pagination"
)

type createBillingEntryRequest struct {
	ClientID    string `json:"client_id"`
	ServiceID   string `json:"service_id"`
	Quantity    string `json:"quantity"`
	ServiceDate string `json:"service_date"`
	Notes       string `json:"notes"`
	IsBillable  *bool  `json:"is_billable"`
}

func (s *Server) CreateBillingEntry(c *gin.Context) {
	var req createBillingEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "invalid quantity"))
		return
	}

	serviceDate, err := time.ParseInLocation(queryDateLayout, strings.TrimSpace(req.ServiceDate), time.UTC)
	if err != nil {
		AbortWithError(c, newValidationError("service_date", "invalid_service_date", "invalid service_date"))
		return
	}

	billable := true
	if req.IsBillable != nil {
		billable = *req.IsBillable
	}

	resp, err := s.entrySvc.Create(c.Request.Context(), entrydomain.CreateEntryRequest{
		ClientID:    strings.TrimSpace(req.ClientID),
		ServiceID:   strings.TrimSpace(req.ServiceID),
		Quantity:    quantity,
		ServiceDate: serviceDate,
		Notes:       req.Notes,
		IsBillable:  billable,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBillingEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ClientID   string `form:"client_id"`
		ServiceID  string `form:"service_id"`
		From       string `form:"from"`
		To         string `form:"to"`
		IsBillable string `form:"is_billable"`
		Uninvoiced string `form:"uninvoiced"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalDate(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalDate(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	uninvoiced := false
	if v := parseOptionalBool(query.Uninvoiced); v != nil {
		uninvoiced = *v
	}

	resp, err := s.entrySvc.List(c.Request.Context(), entrydomain.ListEntryRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		ClientID:   strings.TrimSpace(query.ClientID),
		ServiceID:  strings.TrimSpace(query.ServiceID),
		From:       from,
		To:         to,
		IsBillable: parseOptionalBool(query.IsBillable),
		Uninvoiced: uninvoiced,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingEntryByID(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	entries, err := s.entrySvc.GetByIDs(c.Request.Context(), []snowflake.ID{id})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(entries) == 0 {
		AbortWithError(c, entrydomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries[0]})
}

func isBillingEntryValidationError(err error) bool {
	switch err {
	case entrydomain.ErrInvalidClient,
		entrydomain.ErrInvalidService,
		entrydomain.ErrInvalidQuantity,
		entrydomain.ErrInvalidServiceDate:
		return true
	default:
		return false
	}
}
