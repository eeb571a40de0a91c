package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"garment-storefront/internal/domain"
	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

// Client calls the order-record API. Every request is bounded by the client
// timeout and is attempted exactly once.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

func New(baseURL, token string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type formFile struct {
	field  string
	upload domain.Upload
}

func (c *Client) CreateOrder(ctx context.Context, draft domain.Order) (*domain.Order, error) {
	req := CreateOrderRequest{Notes: draft.Notes}
	for _, it := range draft.Items {
		req.Items = append(req.Items, LineInput{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
		})
	}
	return c.sendJSON(ctx, "create_order", "/order", "", req)
}

func (c *Client) ProposeCustom(ctx context.Context, spec domain.CustomOrderSpec, images []domain.Upload, acknowledged bool) (*domain.Order, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode spec: %w", err)
	}
	files := make([]formFile, 0, len(images))
	for _, img := range images {
		files = append(files, formFile{field: "images", upload: img})
	}
	fields := [][2]string{
		{"spec", string(specJSON)},
		{"fabricDisclosureAcknowledged", fmt.Sprintf("%t", acknowledged)},
	}
	return c.sendMultipart(ctx, "propose_custom", "/order/custom/propose", "", fields, files)
}

func (c *Client) ReviewProposal(ctx context.Context, id string, expected domain.State, priceCents int64, note string) (*domain.Order, error) {
	return c.sendJSON(ctx, "review_proposal", "/order/custom/review/"+url.PathEscape(id), expected, ReviewRequest{PriceCents: priceCents, Note: note})
}

func (c *Client) AcceptProposal(ctx context.Context, id string, expected domain.State) (*domain.Order, error) {
	return c.sendJSON(ctx, "accept_proposal", "/order/custom/accept", expected, OrderRef{OrderID: id})
}

func (c *Client) RejectProposal(ctx context.Context, id string, expected domain.State, reason string) (*domain.Order, error) {
	return c.sendJSON(ctx, "reject_proposal", "/order/custom/reject", expected, OrderRef{OrderID: id, Reason: reason})
}

func (c *Client) FinalizeProposal(ctx context.Context, id string, expected domain.State) (*domain.Order, error) {
	return c.sendJSON(ctx, "finalize_proposal", "/order/custom/finalize/"+url.PathEscape(id), expected, struct{}{})
}

func (c *Client) UploadProof(ctx context.Context, id string, expected domain.State, proof domain.Upload) (*domain.Order, error) {
	fields := [][2]string{{"orderId", id}}
	return c.sendMultipart(ctx, "upload_proof", "/order/checkout/proof", expected, fields, []formFile{{field: "proofImage", upload: proof}})
}

func (c *Client) Verify(ctx context.Context, id string, expected domain.State, decision, reason string) (*domain.Order, error) {
	return c.sendJSON(ctx, "verify_payment", "/order/verify/"+url.PathEscape(id), expected, VerifyRequest{Decision: decision, Reason: reason})
}

func (c *Client) StartProduction(ctx context.Context, id string, expected domain.State) (*domain.Order, error) {
	return c.sendJSON(ctx, "start_production", "/order/production/"+url.PathEscape(id), expected, struct{}{})
}

func (c *Client) Dispatch(ctx context.Context, id string, expected domain.State, carrierRef string, photo *domain.Upload) (*domain.Order, error) {
	fields := [][2]string{{"carrierRef", carrierRef}}
	var files []formFile
	if photo != nil {
		files = append(files, formFile{field: "photo", upload: *photo})
	}
	return c.sendMultipart(ctx, "dispatch", "/order/dispatch/"+url.PathEscape(id), expected, fields, files)
}

func (c *Client) ConfirmReceipt(ctx context.Context, id string, expected domain.State) (*domain.Order, error) {
	return c.sendJSON(ctx, "confirm_receipt", "/order/receive/"+url.PathEscape(id), expected, struct{}{})
}

func (c *Client) Cancel(ctx context.Context, id string, expected domain.State, reason string) (*domain.Order, error) {
	return c.sendJSON(ctx, "cancel", "/order/cancel/"+url.PathEscape(id), expected, ReasonRequest{Reason: reason})
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, "get_order", http.MethodGet, "/order/"+url.PathEscape(id), "", nil, "", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) List(ctx context.Context, state domain.State) ([]domain.Order, error) {
	path := "/order"
	if state != "" {
		path += "?state=" + url.QueryEscape(string(state))
	}
	var res ListResponse
	if err := c.do(ctx, "list_orders", http.MethodGet, path, "", nil, "", &res); err != nil {
		return nil, err
	}
	return res.Orders, nil
}

// Products lists the catalog. It needs no token.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	var res ProductListResponse
	if err := c.do(ctx, "list_products", http.MethodGet, "/products", "", nil, "", &res); err != nil {
		return nil, err
	}
	return res.Products, nil
}

func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, "get_product", http.MethodGet, "/products/"+url.PathEscape(id), "", nil, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) sendJSON(ctx context.Context, op, path string, expected domain.State, payload any) (*domain.Order, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	var o domain.Order
	if err := c.do(ctx, op, http.MethodPost, path, expected, bytes.NewReader(body), "application/json", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) sendMultipart(ctx context.Context, op, path string, expected domain.State, fields [][2]string, files []formFile) (*domain.Order, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("%s: write field %s: %w", op, f[0], err)
		}
	}
	for _, f := range files {
		name := f.upload.Name
		if name == "" {
			name = f.field + ".jpg"
		}
		w, err := mw.CreateFormFile(f.field, name)
		if err != nil {
			return nil, fmt.Errorf("%s: create part %s: %w", op, f.field, err)
		}
		if _, err := w.Write(f.upload.Data); err != nil {
			return nil, fmt.Errorf("%s: write part %s: %w", op, f.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: close multipart: %w", op, err)
	}
	var o domain.Order
	if err := c.do(ctx, op, http.MethodPost, path, expected, &buf, mw.FormDataContentType(), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, expected domain.State, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if expected != "" {
		req.Header.Set(HeaderExpectedState, string(expected))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("orderapi: %s %s error=%v", method, path, err)
		return domain.Transport(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Transport(op, fmt.Errorf("read response: %w", err))
	}
	c.logger.Printf("orderapi: %s %s status=%d duration=%s", method, path, resp.StatusCode, time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(op, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
