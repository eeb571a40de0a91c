// Package orderapi holds the wire contract of the order-record API and the
// HTTP client the storefront uses to call it.
package orderapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"garment-storefront/internal/domain"
)

// HeaderExpectedState carries the state a transition request expects the
// order to be in.
const HeaderExpectedState = "X-Expected-State"

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type LineInput struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []LineInput `json:"items"`
	Notes string      `json:"notes,omitempty"`
}

type ReviewRequest struct {
	PriceCents int64  `json:"priceCents"`
	Note       string `json:"note,omitempty"`
}

// OrderRef addresses an order in the body rather than the path.
type OrderRef struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

type VerifyRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type ListResponse struct {
	Orders []domain.Order `json:"orders"`
}

type ProductListResponse struct {
	Products []domain.Product `json:"products"`
}

const (
	CodeValidation         = "validation"
	CodeUnauthorized       = "unauthorized"
	CodePreconditionFailed = "precondition_failed"
	CodeInvalidTransition  = "invalid_transition"
	CodeStateConflict      = "state_conflict"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal"
)

type ErrorResponse struct {
	Code          string       `json:"code"`
	Error         string       `json:"error"`
	Field         string       `json:"field,omitempty"`
	Action        string       `json:"action,omitempty"`
	ExpectedState domain.State `json:"expectedState,omitempty"`
	ActualState   domain.State `json:"actualState,omitempty"`
}

var kinds = []struct {
	kind   error
	code   string
	status int
}{
	{domain.ErrValidation, CodeValidation, http.StatusBadRequest},
	{domain.ErrUnauthorized, CodeUnauthorized, http.StatusForbidden},
	{domain.ErrPreconditionFailed, CodePreconditionFailed, http.StatusPreconditionFailed},
	{domain.ErrInvalidTransition, CodeInvalidTransition, http.StatusConflict},
	{domain.ErrStateConflict, CodeStateConflict, http.StatusConflict},
	{domain.ErrNotFound, CodeNotFound, http.StatusNotFound},
}

// NewErrorResponse renders err as a status code and response body. Errors
// outside the domain taxonomy become an opaque 500.
func NewErrorResponse(err error) (int, ErrorResponse) {
	for _, k := range kinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		body := ErrorResponse{Code: k.code, Error: err.Error()}
		if de, ok := domain.AsError(err); ok {
			body.Field = de.Field
			body.Action = de.Action
			body.ExpectedState = de.Expected
			body.ActualState = de.Actual
			if de.Message != "" {
				body.Error = de.Message
			}
		}
		return k.status, body
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Error: "internal error"}
}

// DecodeError turns a non-2xx response into a domain error. Server faults
// and unrecognized responses become transport errors.
func DecodeError(op string, status int, raw []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		body.Code = codeForStatus(status)
		body.Error = strings.TrimSpace(string(raw))
	}
	if status >= http.StatusInternalServerError || body.Code == CodeInternal || body.Code == "" {
		return domain.Transport(op, fmt.Errorf("status %d: %s", status, body.Error))
	}
	de := &domain.Error{
		Action:   body.Action,
		Field:    body.Field,
		Expected: body.ExpectedState,
		Actual:   body.ActualState,
		Message:  body.Error,
	}
	if de.Action == "" {
		de.Action = op
	}
	for _, k := range kinds {
		if k.code == body.Code {
			de.Kind = k.kind
			return de
		}
	}
	return domain.Transport(op, fmt.Errorf("status %d: unknown error code %q", status, body.Code))
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusPreconditionFailed:
		return CodePreconditionFailed
	case http.StatusConflict:
		return CodeStateConflict
	}
	return ""
}
