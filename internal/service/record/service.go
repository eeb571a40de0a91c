// Package record is the order system of record behind the HTTP API. It
// enforces the same transition table as the storefront client and applies
// every change as a compare-and-set against the stored state.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"garment-storefront/internal/artifact"
	"garment-storefront/internal/domain"
	"garment-storefront/internal/events"
	"garment-storefront/internal/imageproc"
	"garment-storefront/internal/lifecycle"
	"garment-storefront/internal/metrics"
	orderrepo "garment-storefront/internal/repository/order"
	"github.com/google/uuid"
)

type productLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type artifactStore interface {
	Save(ctx context.Context, kind string, up domain.Upload) (artifact.Stored, error)
}

// ItemInput is one requested catalog line before pricing.
type ItemInput struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

// TransitionInput is a transition request as received from the wire.
// Expected is the state the caller believes the order is in.
type TransitionInput struct {
	Action     lifecycle.Action
	Expected   domain.State
	Reason     string
	PriceCents int64
	Note       string
	CarrierRef string
	Proof      *domain.Upload
	Photo      *domain.Upload
}

type Service struct {
	orders   orderrepo.Repository
	products productLookup
	files    artifactStore
	pub      events.Publisher
	logger   *log.Logger
	now      func() time.Time
}

func New(orders orderrepo.Repository, products productLookup, files artifactStore, pub events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{orders: orders, products: products, files: files, pub: pub, logger: logger, now: time.Now}
}

// CreateCatalogOrder prices the requested lines from the product table and
// applies the system submit edge before the single insert, so the stored
// order is already PendingPayment.
func (s *Service) CreateCatalogOrder(ctx context.Context, actor domain.Actor, items []ItemInput, notes string) (*domain.Order, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, domain.Unauthorized("submit_order", actor.Role)
	}
	if len(items) == 0 {
		return nil, domain.Validation("items", "at least one item is required")
	}
	lines := make([]domain.LineItem, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		productID := strings.TrimSpace(it.ProductID)
		if productID == "" {
			return nil, domain.Validation(field+".productId", "product is required")
		}
		if strings.TrimSpace(it.Size) == "" {
			return nil, domain.Validation(field+".size", "size is required")
		}
		if strings.TrimSpace(it.Color) == "" {
			return nil, domain.Validation(field+".color", "color is required")
		}
		if it.Quantity < 1 {
			return nil, domain.Validation(field+".quantity", "quantity must be at least 1")
		}
		lines = append(lines, domain.LineItem{
			ProductID: productID,
			Size:      strings.TrimSpace(it.Size),
			Color:     strings.TrimSpace(it.Color),
			Quantity:  it.Quantity,
		})
		ids = append(ids, productID)
	}

	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines = domain.MergeLines(lines)
	for i := range lines {
		p, ok := found[lines[i].ProductID]
		if !ok {
			return nil, domain.Validation("items", "unknown product %q", lines[i].ProductID)
		}
		lines[i].Name = p.Name
		lines[i].UnitPriceCents = p.PriceCents
	}

	now := s.now().UTC()
	draft := domain.NewCatalogOrder(actor.ID, domain.NewCart(lines).WithIDs(), notes, now)
	draft.ID = uuid.NewString()

	submit := lifecycle.Input{Action: lifecycle.ActionSubmit, Actor: domain.System}
	out, err := lifecycle.Plan(draft, submit)
	if err != nil {
		return nil, err
	}
	created, err := s.orders.Create(ctx, lifecycle.Apply(draft, submit, out))
	if err != nil {
		s.logger.Printf("record: create catalog order customer=%s error=%v", actor.ID, err)
		return nil, err
	}
	metrics.RecordTransition(string(submit.Action), "applied")
	s.logger.Printf("record: created catalog order id=%s customer=%s lines=%d total=%d state=%s", created.ID, actor.ID, len(created.Items), created.TotalCents, created.State)

	s.publish(ctx, events.NewCreated(draft, actor, now))
	s.publish(ctx, events.NewTransition(*created, string(submit.Action), out.From, domain.System, now))
	return created, nil
}

// ProposeCustom stores a custom order request with its reference images.
func (s *Service) ProposeCustom(ctx context.Context, actor domain.Actor, spec domain.CustomOrderSpec, images []domain.Upload, acknowledged bool) (*domain.Order, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, domain.Unauthorized("propose_custom", actor.Role)
	}
	spec.ReferenceImages = nil
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateReferenceImages(len(images)); err != nil {
		return nil, err
	}
	if !acknowledged {
		return nil, domain.Validation("fabricDisclosure", "the fabric sourcing disclosure must be acknowledged")
	}
	for i, img := range images {
		if err := checkImage(img, fmt.Sprintf("images[%d]", i)); err != nil {
			return nil, err
		}
	}
	for _, img := range images {
		stored, err := s.files.Save(ctx, "reference", img)
		if err != nil {
			return nil, err
		}
		spec.ReferenceImages = append(spec.ReferenceImages, stored.URL)
	}

	now := s.now().UTC()
	o := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: actor.ID,
		Kind:       domain.KindCustom,
		State:      domain.StateProposalSubmitted,
		Custom:     &spec,
		Notes:      strings.TrimSpace(spec.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.orders.Create(ctx, o)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewCreated(*created, actor, now))
	s.logger.Printf("record: proposed custom order id=%s customer=%s pieces=%d images=%d", created.ID, actor.ID, spec.TotalQuantity(), len(images))
	return created, nil
}

// Transition applies one lifecycle action to the order with the given id.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, id string, in TransitionInput) (*domain.Order, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	li := lifecycle.Input{
		Action:     in.Action,
		Actor:      actor,
		Reason:     in.Reason,
		PriceCents: in.PriceCents,
		Note:       in.Note,
	}
	if in.Proof != nil && !in.Proof.Empty() {
		li.Proof = in.Proof.SHA256()
	}
	li.Evidence.CarrierRef = strings.TrimSpace(in.CarrierRef)
	if in.Photo != nil && !in.Photo.Empty() {
		li.Evidence.PhotoSHA256 = in.Photo.SHA256()
	}

	out, err := lifecycle.Plan(*current, li)
	if err == nil && out.Noop {
		s.logger.Printf("record: replay id=%s action=%s state=%s", current.ID, in.Action, current.State)
		metrics.RecordTransition(string(in.Action), "noop")
		return current, nil
	}
	if current.State.Terminal() {
		metrics.RecordTransition(string(in.Action), "rejected")
		return nil, domain.InvalidTransition(string(in.Action), current.State)
	}
	if in.Expected != "" && in.Expected != current.State {
		metrics.RecordTransition(string(in.Action), "conflict")
		return nil, domain.StateConflict(in.Expected, current.State)
	}
	if err != nil {
		metrics.RecordTransition(string(in.Action), "rejected")
		return nil, err
	}

	switch in.Action {
	case lifecycle.ActionUploadProof:
		if err := checkImage(*in.Proof, "proofImage"); err != nil {
			return nil, err
		}
		stored, err := s.files.Save(ctx, "proof", *in.Proof)
		if err != nil {
			return nil, err
		}
		li.Proof = stored.URL
	case lifecycle.ActionDispatch:
		if in.Photo != nil && !in.Photo.Empty() {
			if err := checkImage(*in.Photo, "photo"); err != nil {
				return nil, err
			}
			stored, err := s.files.Save(ctx, "delivery", *in.Photo)
			if err != nil {
				return nil, err
			}
			li.Evidence.PhotoURL = stored.URL
		}
	}

	return s.commit(ctx, actor, *current, li, out)
}

func (s *Service) commit(ctx context.Context, actor domain.Actor, current domain.Order, in lifecycle.Input, out lifecycle.Outcome) (*domain.Order, error) {
	next := lifecycle.Apply(current, in, out)
	saved, err := s.orders.Transition(ctx, orderrepo.TransitionParams{
		Next:  next,
		From:  out.From,
		Stock: stockEffect(current, out),
	})
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, domain.ErrStateConflict):
			result = "conflict"
		case errors.Is(err, domain.ErrPreconditionFailed):
			result = "rejected"
		}
		metrics.RecordTransition(string(in.Action), result)
		s.logger.Printf("record: transition id=%s action=%s from=%s error=%v", current.ID, in.Action, out.From, err)
		return nil, err
	}
	metrics.RecordTransition(string(in.Action), "applied")
	s.publish(ctx, events.NewTransition(*saved, string(in.Action), out.From, actor, s.now()))
	s.logger.Printf("record: transition id=%s action=%s %s -> %s actor=%s", saved.ID, in.Action, out.From, saved.State, actor.Role)
	return saved, nil
}

// stockEffect reserves catalog stock when payment is verified and returns it
// when an order holding a reservation is cancelled.
func stockEffect(o domain.Order, out lifecycle.Outcome) orderrepo.StockEffect {
	if o.Kind != domain.KindCatalog {
		return orderrepo.StockNone
	}
	switch {
	case out.To == domain.StateVerified:
		return orderrepo.StockReserve
	case out.To == domain.StateCancelled && (out.From == domain.StateVerified || out.From == domain.StateInProduction):
		return orderrepo.StockRelease
	}
	return orderrepo.StockNone
}

// Get returns the order if actor may see it: staff see every order,
// customers only their own. Unknown ids are reported as not found.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, *o) {
		return nil, domain.Unauthorized("view_order", actor.Role)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, state domain.State) ([]domain.Order, error) {
	f := orderrepo.ListFilter{State: state}
	switch actor.Role {
	case domain.RoleStaff, domain.RoleSystem:
	case domain.RoleCustomer:
		f.CustomerID = actor.ID
	default:
		return nil, domain.Unauthorized("list_orders", actor.Role)
	}
	return s.orders.List(ctx, f)
}

func canView(actor domain.Actor, o domain.Order) bool {
	switch actor.Role {
	case domain.RoleStaff, domain.RoleSystem:
		return true
	case domain.RoleCustomer:
		return actor.ID != "" && actor.ID == o.CustomerID
	}
	return false
}

func checkImage(up domain.Upload, field string) error {
	if up.Empty() {
		return domain.Validation(field, "image is empty")
	}
	if _, err := imageproc.Check(up.Data); err != nil {
		return domain.Validation(field, "not a supported image")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		metrics.RecordPublishFailure()
		s.logger.Printf("record: publish kind=%s order_id=%s error=%v", e.Kind, e.OrderID, err)
	}
}
