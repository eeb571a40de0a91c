package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// MinBatchQuantity is the smallest custom production run accepted.
	MinBatchQuantity   = 3
	MaxReferenceImages = 5
)

type OrderKind string

const (
	KindCatalog OrderKind = "catalog"
	KindCustom  OrderKind = "custom"
)

type Order struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customerId"`
	Kind             OrderKind         `json:"kind"`
	State            State             `json:"state"`
	Items            []LineItem        `json:"items,omitempty"`
	Custom           *CustomOrderSpec  `json:"custom,omitempty"`
	Proposal         *Proposal         `json:"proposal,omitempty"`
	TotalCents       int64             `json:"totalCents"`
	Notes            string            `json:"notes,omitempty"`
	PaymentProof     string            `json:"paymentProof,omitempty"`
	PaymentRejection string            `json:"paymentRejection,omitempty"`
	Delivery         *DeliveryEvidence `json:"delivery,omitempty"`
	CancelReason     string            `json:"cancelReason,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Proposal is the staff price and note attached to a reviewed custom order.
type Proposal struct {
	PriceCents int64  `json:"priceCents"`
	Note       string `json:"note,omitempty"`
}

type DeliveryEvidence struct {
	CarrierRef  string `json:"carrierRef,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	PhotoSHA256 string `json:"photoSha256,omitempty"`
}

func (e DeliveryEvidence) Empty() bool {
	return strings.TrimSpace(e.CarrierRef) == "" && e.PhotoSHA256 == "" && e.PhotoURL == ""
}

// Same compares the caller-supplied parts of the evidence; PhotoURL is
// assigned by the artifact store and is ignored.
func (e DeliveryEvidence) Same(other DeliveryEvidence) bool {
	return strings.TrimSpace(e.CarrierRef) == strings.TrimSpace(other.CarrierRef) &&
		e.PhotoSHA256 == other.PhotoSHA256
}

// NewCatalogOrder builds the local Created draft for a cart checkout.
func NewCatalogOrder(customerID string, cart Cart, notes string, now time.Time) Order {
	return Order{
		CustomerID: customerID,
		Kind:       KindCatalog,
		State:      StateCreated,
		Items:      cart.items(),
		TotalCents: cart.Total(),
		Notes:      strings.TrimSpace(notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

type CustomOrderSpec struct {
	GarmentType            string       `json:"garmentType,omitempty"`
	Colors                 []ColorGroup `json:"colors"`
	ReferenceImages        []string     `json:"referenceImages,omitempty"`
	CustomerProvidesFabric bool         `json:"customerProvidesFabric"`
	Notes                  string       `json:"notes,omitempty"`
}

type ColorGroup struct {
	Name  string         `json:"name"`
	Sizes []SizeQuantity `json:"sizes"`
}

type SizeQuantity struct {
	Size     string `json:"size"`
	Quantity int    `json:"qty"`
}

func (s CustomOrderSpec) TotalQuantity() int {
	n := 0
	for _, c := range s.Colors {
		for _, sz := range c.Sizes {
			if sz.Quantity > 0 {
				n += sz.Quantity
			}
		}
	}
	return n
}

// Validate checks the production invariants in a fixed order and reports the
// first one violated: minimum batch, sizes, color names, reference images.
func (s CustomOrderSpec) Validate() error {
	if total := s.TotalQuantity(); total < MinBatchQuantity {
		return Validation("quantity", "minimum production batch is %d pieces, got %d", MinBatchQuantity, total)
	}
	for i, c := range s.Colors {
		if len(c.Sizes) == 0 {
			return Validation(fmt.Sprintf("colors[%d].sizes", i), "each color needs at least one size")
		}
		for j, sz := range c.Sizes {
			if strings.TrimSpace(sz.Size) == "" {
				return Validation(fmt.Sprintf("colors[%d].sizes[%d].size", i, j), "size is required")
			}
			if sz.Quantity < 1 {
				return Validation(fmt.Sprintf("colors[%d].sizes[%d].qty", i, j), "quantity must be at least 1")
			}
		}
	}
	for i, c := range s.Colors {
		if strings.TrimSpace(c.Name) == "" {
			return Validation(fmt.Sprintf("colors[%d].name", i), "color name is required")
		}
	}
	return ValidateReferenceImages(len(s.ReferenceImages))
}

func ValidateReferenceImages(n int) error {
	if n > MaxReferenceImages {
		return Validation("referenceImages", "at most %d reference images, got %d", MaxReferenceImages, n)
	}
	return nil
}

// Upload is a file supplied by a caller: a payment proof, a delivery photo or
// a reference image.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

func (u Upload) Empty() bool { return len(u.Data) == 0 }

func (u Upload) SHA256() string {
	sum := sha256.Sum256(u.Data)
	return hex.EncodeToString(sum[:])
}
