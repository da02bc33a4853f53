package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/middleware"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.AccessClaims {
	claims, _ := middleware.CurrentUser(c)
	return claims
}

// int64Param parses a positive integer path parameter.
func int64Param(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return v, nil
}

// yearMonthQuery reads the mandatory year and month query parameters.
func yearMonthQuery(c *gin.Context) (int, int, error) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "year is required")
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "month must be 1-12")
	}
	return year, month, nil
}

func bindError(err error, message string) error {
	return appErrors.WrapAs(appErrors.ErrValidation, err, message)
}

// writeResult sends a committed write. A failed notification turns the
// response into a 207 with the mail error attached.
func writeResult(c *gin.Context, status int, data interface{}, emailError string) {
	if emailError != "" {
		response.Degraded(c, data, appErrors.Clone(appErrors.ErrMailDelivery, emailError))
		return
	}
	response.JSON(c, status, data, nil, middleware.ExtractMeta(c))
}
