package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/imageproc"
	"garment-storefront/internal/lifecycle"
	"garment-storefront/internal/orderapi"
)

type Decision string

const (
	Approve Decision = orderapi.DecisionApprove
	Reject  Decision = orderapi.DecisionReject
)

type recordAPI interface {
	CreateOrder(ctx context.Context, draft domain.Order) (*domain.Order, error)
	ProposeCustom(ctx context.Context, spec domain.CustomOrderSpec, images []domain.Upload, acknowledged bool) (*domain.Order, error)
	ReviewProposal(ctx context.Context, id string, expected domain.State, priceCents int64, note string) (*domain.Order, error)
	AcceptProposal(ctx context.Context, id string, expected domain.State) (*domain.Order, error)
	RejectProposal(ctx context.Context, id string, expected domain.State, reason string) (*domain.Order, error)
	FinalizeProposal(ctx context.Context, id string, expected domain.State) (*domain.Order, error)
	UploadProof(ctx context.Context, id string, expected domain.State, proof domain.Upload) (*domain.Order, error)
	Verify(ctx context.Context, id string, expected domain.State, decision, reason string) (*domain.Order, error)
	StartProduction(ctx context.Context, id string, expected domain.State) (*domain.Order, error)
	Dispatch(ctx context.Context, id string, expected domain.State, carrierRef string, photo *domain.Upload) (*domain.Order, error)
	ConfirmReceipt(ctx context.Context, id string, expected domain.State) (*domain.Order, error)
	Cancel(ctx context.Context, id string, expected domain.State, reason string) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, state domain.State) ([]domain.Order, error)
}

type cartClearer interface {
	Clear(ctx context.Context) domain.Cart
}

// Service is the storefront side of the order lifecycle. Each operation
// takes the caller's current snapshot, checks the transition locally, sends
// it with the snapshot's state as the expected state and returns the
// server's snapshot, which replaces the caller's copy.
type Service struct {
	api    recordAPI
	carts  cartClearer
	actor  domain.Actor
	logger *log.Logger
	now    func() time.Time
}

func New(api recordAPI, carts cartClearer, actor domain.Actor, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{api: api, carts: carts, actor: actor, logger: logger, now: time.Now}
}

func (s *Service) Actor() domain.Actor { return s.actor }

// SubmitCartOrder checks out c. The cart is cleared only when the server
// accepted the order.
func (s *Service) SubmitCartOrder(ctx context.Context, c domain.Cart, shippingNotes string) (*domain.Order, error) {
	if c.Empty() {
		return nil, domain.Validation("items", "cart is empty")
	}
	if s.actor.Role != domain.RoleCustomer {
		return nil, domain.Unauthorized("submit_order", s.actor.Role)
	}
	draft := domain.NewCatalogOrder(s.actor.ID, c, shippingNotes, s.now().UTC())
	created, err := s.api.CreateOrder(ctx, draft)
	if err != nil {
		s.logger.Printf("order: submit lines=%d error=%v", len(c.Items), err)
		return nil, domain.Submission(err)
	}
	if created.State != domain.StateCreated && created.State != domain.StatePendingPayment {
		s.logger.Printf("order: submit id=%s unexpected state=%s", created.ID, created.State)
	}
	s.carts.Clear(ctx)
	s.logger.Printf("order: submitted id=%s state=%s total=%d", created.ID, created.State, created.TotalCents)
	return created, nil
}

// SubmitCustomOrder validates spec and the fabric disclosure before any
// upload, then proposes the order.
func (s *Service) SubmitCustomOrder(ctx context.Context, spec domain.CustomOrderSpec, images []domain.Upload, acknowledged bool) (*domain.Order, error) {
	if s.actor.Role != domain.RoleCustomer {
		return nil, domain.Unauthorized("propose_custom", s.actor.Role)
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
	normalized := make([]domain.Upload, 0, len(images))
	for i, img := range images {
		up, err := normalize(img, fmt.Sprintf("referenceImages[%d]", i))
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, up)
	}
	created, err := s.api.ProposeCustom(ctx, spec, normalized, acknowledged)
	if err != nil {
		s.logger.Printf("order: propose custom pieces=%d error=%v", spec.TotalQuantity(), err)
		return nil, domain.Submission(err)
	}
	s.logger.Printf("order: proposed id=%s pieces=%d", created.ID, spec.TotalQuantity())
	return created, nil
}

func (s *Service) ReviewProposal(ctx context.Context, current domain.Order, priceCents int64, note string) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionReviewProposal, PriceCents: priceCents, Note: note}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.ReviewProposal(ctx, current.ID, expected, priceCents, strings.TrimSpace(note))
	})
}

func (s *Service) AcceptProposal(ctx context.Context, current domain.Order) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionAcceptProposal}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.AcceptProposal(ctx, current.ID, expected)
	})
}

func (s *Service) RejectProposal(ctx context.Context, current domain.Order, reason string) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionRejectProposal, Reason: reason}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.RejectProposal(ctx, current.ID, expected, strings.TrimSpace(reason))
	})
}

func (s *Service) FinalizeProposal(ctx context.Context, current domain.Order) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionFinalizeProposal}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.FinalizeProposal(ctx, current.ID, expected)
	})
}

// UploadProof attaches a payment proof and moves the order to
// AwaitingVerification.
func (s *Service) UploadProof(ctx context.Context, current domain.Order, proof domain.Upload) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionUploadProof}
	if !proof.Empty() {
		in.Proof = proof.SHA256()
	}
	in.Actor = s.actor
	if _, err := lifecycle.Plan(current, in); err != nil {
		return nil, err
	}
	up, err := normalize(proof, "proofImage")
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.UploadProof(ctx, current.ID, expected, up)
	})
}

func (s *Service) Verify(ctx context.Context, current domain.Order, decision Decision, reason string) (*domain.Order, error) {
	var in lifecycle.Input
	switch decision {
	case Approve:
		in = lifecycle.Input{Action: lifecycle.ActionApprovePayment}
		reason = ""
	case Reject:
		in = lifecycle.Input{Action: lifecycle.ActionRejectPayment, Reason: reason}
	default:
		return nil, domain.Validation("decision", "decision must be %q or %q", Approve, Reject)
	}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.Verify(ctx, current.ID, expected, string(decision), strings.TrimSpace(reason))
	})
}

func (s *Service) StartProduction(ctx context.Context, current domain.Order) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionStartProduction}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.StartProduction(ctx, current.ID, expected)
	})
}

// Dispatch hands the order to the carrier. Evidence is a carrier reference,
// a parcel photo or both.
func (s *Service) Dispatch(ctx context.Context, current domain.Order, carrierRef string, photo *domain.Upload) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionDispatch}
	in.Evidence.CarrierRef = strings.TrimSpace(carrierRef)
	var up *domain.Upload
	if photo != nil && !photo.Empty() {
		normalized, err := normalize(*photo, "photo")
		if err != nil {
			return nil, err
		}
		up = &normalized
		in.Evidence.PhotoSHA256 = normalized.SHA256()
	}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.Dispatch(ctx, current.ID, expected, in.Evidence.CarrierRef, up)
	})
}

func (s *Service) ConfirmReceipt(ctx context.Context, current domain.Order) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionConfirmReceipt}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.ConfirmReceipt(ctx, current.ID, expected)
	})
}

func (s *Service) Cancel(ctx context.Context, current domain.Order, reason string) (*domain.Order, error) {
	in := lifecycle.Input{Action: lifecycle.ActionCancel, Reason: reason}
	return s.transition(ctx, current, in, func(expected domain.State) (*domain.Order, error) {
		return s.api.Cancel(ctx, current.ID, expected, strings.TrimSpace(reason))
	})
}

func (s *Service) Refresh(ctx context.Context, id string) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validation("orderId", "order id is required")
	}
	return s.api.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, state domain.State) ([]domain.Order, error) {
	if state != "" && !state.Valid() {
		return nil, domain.Validation("state", "unknown state %q", state)
	}
	return s.api.List(ctx, state)
}

// Actions reports which transitions the current actor may request on o.
func (s *Service) Actions(o domain.Order) []lifecycle.Action {
	return lifecycle.Allowed(o, s.actor)
}

func (s *Service) transition(ctx context.Context, current domain.Order, in lifecycle.Input, call func(expected domain.State) (*domain.Order, error)) (*domain.Order, error) {
	if strings.TrimSpace(current.ID) == "" {
		return nil, domain.Validation("orderId", "order id is required")
	}
	in.Actor = s.actor
	out, err := lifecycle.Plan(current, in)
	if err != nil {
		return nil, err
	}
	if out.Noop {
		s.logger.Printf("order: %s id=%s already %s", in.Action, current.ID, current.State)
		snapshot := current
		return &snapshot, nil
	}
	updated, err := call(current.State)
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			s.logger.Printf("order: %s id=%s conflict error=%v", in.Action, current.ID, err)
		} else {
			s.logger.Printf("order: %s id=%s error=%v", in.Action, current.ID, err)
		}
		return nil, err
	}
	s.logger.Printf("order: %s id=%s %s -> %s", in.Action, current.ID, current.State, updated.State)
	return updated, nil
}

func normalize(up domain.Upload, field string) (domain.Upload, error) {
	if up.Empty() {
		return domain.Upload{}, domain.Validation(field, "image is empty")
	}
	data, err := imageproc.Normalize(up.Data)
	if err != nil {
		return domain.Upload{}, domain.Validation(field, "%v", err)
	}
	name := up.Name
	if name == "" {
		name = field
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	return domain.Upload{Name: name, ContentType: "image/jpeg", Data: data}, nil
}
