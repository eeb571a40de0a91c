package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/lifecycle"
	"garment-storefront/internal/orderapi"
	"garment-storefront/internal/service/record"
	"github.com/gin-gonic/gin"
)

type orderHandlers struct {
	svc    orderService
	logger *log.Logger
}

func (h *orderHandlers) create(c *gin.Context) {
	var req orderapi.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	items := make([]record.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, record.ItemInput{ProductID: it.ProductID, Size: it.Size, Color: it.Color, Quantity: it.Quantity})
	}
	o, err := h.svc.CreateCatalogOrder(c.Request.Context(), actorFrom(c), items, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *orderHandlers) propose(c *gin.Context) {
	var spec domain.CustomOrderSpec
	if err := json.Unmarshal([]byte(c.PostForm("spec")), &spec); err != nil {
		h.fail(c, domain.Validation("spec", "spec must be a JSON custom order"))
		return
	}
	acknowledged, _ := strconv.ParseBool(c.PostForm("fabricDisclosureAcknowledged"))
	images, err := formFiles(c, "images")
	if err != nil {
		h.fail(c, err)
		return
	}
	o, err := h.svc.ProposeCustom(c.Request.Context(), actorFrom(c), spec, images, acknowledged)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *orderHandlers) review(c *gin.Context) {
	var req orderapi.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	h.transition(c, c.Param("orderId"), record.TransitionInput{
		Action:     lifecycle.ActionReviewProposal,
		PriceCents: req.PriceCents,
		Note:       req.Note,
	})
}

func (h *orderHandlers) acceptProposal(c *gin.Context) {
	var req orderapi.OrderRef
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	h.transition(c, req.OrderID, record.TransitionInput{Action: lifecycle.ActionAcceptProposal})
}

func (h *orderHandlers) rejectProposal(c *gin.Context) {
	var req orderapi.OrderRef
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	h.transition(c, req.OrderID, record.TransitionInput{Action: lifecycle.ActionRejectProposal, Reason: req.Reason})
}

func (h *orderHandlers) finalize(c *gin.Context) {
	h.transition(c, c.Param("orderId"), record.TransitionInput{Action: lifecycle.ActionFinalizeProposal})
}

func (h *orderHandlers) uploadProof(c *gin.Context) {
	proof, err := formFile(c, "proofImage")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		h.fail(c, err)
		return
	}
	h.transition(c, c.PostForm("orderId"), record.TransitionInput{Action: lifecycle.ActionUploadProof, Proof: proof})
}

func (h *orderHandlers) verify(c *gin.Context) {
	var req orderapi.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	in := record.TransitionInput{Reason: req.Reason}
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case orderapi.DecisionApprove:
		in.Action = lifecycle.ActionApprovePayment
	case orderapi.DecisionReject:
		in.Action = lifecycle.ActionRejectPayment
	default:
		h.fail(c, domain.Validation("decision", "decision must be %q or %q", orderapi.DecisionApprove, orderapi.DecisionReject))
		return
	}
	h.transition(c, c.Param("orderId"), in)
}

func (h *orderHandlers) startProduction(c *gin.Context) {
	h.transition(c, c.Param("orderId"), record.TransitionInput{Action: lifecycle.ActionStartProduction})
}

func (h *orderHandlers) dispatch(c *gin.Context) {
	photo, err := formFile(c, "photo")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		h.fail(c, err)
		return
	}
	h.transition(c, c.Param("orderId"), record.TransitionInput{
		Action:     lifecycle.ActionDispatch,
		CarrierRef: c.PostForm("carrierRef"),
		Photo:      photo,
	})
}

func (h *orderHandlers) confirmReceipt(c *gin.Context) {
	h.transition(c, c.Param("orderId"), record.TransitionInput{Action: lifecycle.ActionConfirmReceipt})
}

func (h *orderHandlers) cancel(c *gin.Context) {
	var req orderapi.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validation("body", "invalid JSON body"))
		return
	}
	h.transition(c, c.Param("orderId"), record.TransitionInput{Action: lifecycle.ActionCancel, Reason: req.Reason})
}

func (h *orderHandlers) get(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), actorFrom(c), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *orderHandlers) list(c *gin.Context) {
	var state domain.State
	if raw := strings.TrimSpace(c.Query("state")); raw != "" {
		s, err := lifecycle.ParseState(raw)
		if err != nil {
			h.fail(c, domain.Validation("state", "unknown state %q", raw))
			return
		}
		state = s
	}
	orders, err := h.svc.List(c.Request.Context(), actorFrom(c), state)
	if err != nil {
		h.fail(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orderapi.ListResponse{Orders: orders})
}

// transition reads the expected state header and forwards the request.
func (h *orderHandlers) transition(c *gin.Context, id string, in record.TransitionInput) {
	raw := strings.TrimSpace(c.GetHeader(orderapi.HeaderExpectedState))
	if raw == "" {
		h.fail(c, domain.Validation(orderapi.HeaderExpectedState, "expected state header is required"))
		return
	}
	expected, err := lifecycle.ParseState(raw)
	if err != nil {
		h.fail(c, domain.Validation(orderapi.HeaderExpectedState, "unknown state %q", raw))
		return
	}
	if strings.TrimSpace(id) == "" {
		h.fail(c, domain.Validation("orderId", "order id is required"))
		return
	}
	in.Expected = expected
	o, err := h.svc.Transition(c.Request.Context(), actorFrom(c), strings.TrimSpace(id), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *orderHandlers) fail(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

func writeError(c *gin.Context, logger *log.Logger, err error) {
	status, body := orderapi.NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Printf("httpserver: %s %s error=%v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}

func formFile(c *gin.Context, field string) (*domain.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, http.ErrMissingFile
		}
		return nil, domain.Validation(field, "invalid multipart upload")
	}
	up, err := readUpload(field, fh)
	if err != nil {
		return nil, err
	}
	return &up, nil
}

func formFiles(c *gin.Context, field string) ([]domain.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.Validation(field, "invalid multipart upload")
	}
	headers := form.File[field]
	out := make([]domain.Upload, 0, len(headers))
	for i, fh := range headers {
		up, err := readUpload(fmt.Sprintf("%s[%d]", field, i), fh)
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	return out, nil
}

func readUpload(field string, fh *multipart.FileHeader) (domain.Upload, error) {
	if fh.Size > maxUploadBytes {
		return domain.Upload{}, domain.Validation(field, "file exceeds %d bytes", maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, domain.Validation(field, "unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return domain.Upload{}, domain.Validation(field, "unreadable upload")
	}
	return domain.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}
