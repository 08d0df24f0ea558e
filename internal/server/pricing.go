package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
)

type createPriceRequest struct {
	ClientID  string `json:"client_id"`
	ServiceID string `json:"service_id"`
	UnitPrice string `json:"unit_price"`
	StartDate string `json:"start_date"`
}

func (s *Server) CreatePrice(c *gin.Context) {
	var req createPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unitPrice, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil {
		AbortWithError(c, newValidationError("unit_price", "invalid_unit_price", "invalid unit_price"))
		return
	}

	startDate, err := time.ParseInLocation(queryDateLayout, strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}

	resp, err := s.pricingSvc.Create(c.Request.Context(), pricingdomain.CreatePriceRequest{
		ClientID:  strings.TrimSpace(req.ClientID),
		ServiceID: strings.TrimSpace(req.ServiceID),
		UnitPrice: unitPrice,
		StartDate: startDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isPricingValidationError(err error) bool {
	switch err {
	case pricingdomain.ErrInvalidClient,
		pricingdomain.ErrInvalidService,
		pricingdomain.ErrInvalidUnitPrice,
		pricingdomain.ErrInvalidStartDate:
		return true
	default:
		return false
	}
}
