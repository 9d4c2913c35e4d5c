package api

import (
	"net/http"
	"regexp"
	"time"

	"mcd-dashboard/respond"
)

var (
	couponIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type fieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type validationErrorBody struct {
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors"`
}

func writeValidationError(w http.ResponseWriter, errs ...fieldError) {
	respond.JSON(w, http.StatusBadRequest, validationErrorBody{
		Message: "Validation failed",
		Errors:  errs,
	})
}

func validateCouponID(id string) *fieldError {
	if id == "" {
		return &fieldError{Path: "couponId", Message: "Coupon ID is required"}
	}
	if !couponIDRe.MatchString(id) {
		return &fieldError{Path: "couponId", Message: "Invalid coupon ID format"}
	}
	return nil
}

// validateDate aceita yyyy-MM-dd e exige uma data de calendário real.
func validateDate(date string) *fieldError {
	if !dateRe.MatchString(date) {
		return &fieldError{Path: "date", Message: "Invalid date format. Use yyyy-MM-dd"}
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return &fieldError{Path: "date", Message: "Invalid date"}
	}
	return nil
}
