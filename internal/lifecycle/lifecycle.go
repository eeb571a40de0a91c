// Package lifecycle holds the order transition table shared by the storefront
// client and the order-record service.
package lifecycle

import (
	"strings"

	"garment-storefront/internal/domain"
)

type Action string

const (
	ActionSubmit           Action = "submit"
	ActionUploadProof      Action = "upload_proof"
	ActionApprovePayment   Action = "approve_payment"
	ActionRejectPayment    Action = "reject_payment"
	ActionStartProduction  Action = "start_production"
	ActionDispatch         Action = "dispatch"
	ActionConfirmReceipt   Action = "confirm_receipt"
	ActionCancel           Action = "cancel"
	ActionReviewProposal   Action = "review_proposal"
	ActionAcceptProposal   Action = "accept_proposal"
	ActionRejectProposal   Action = "reject_proposal"
	ActionFinalizeProposal Action = "finalize_proposal"
)

type Edge struct {
	Action Action
	From   domain.State
	To     domain.State
	Actor  domain.Role
}

var edges = []Edge{
	{ActionSubmit, domain.StateCreated, domain.StatePendingPayment, domain.RoleSystem},
	{ActionUploadProof, domain.StatePendingPayment, domain.StateAwaitingVerification, domain.RoleCustomer},
	{ActionApprovePayment, domain.StateAwaitingVerification, domain.StateVerified, domain.RoleStaff},
	{ActionRejectPayment, domain.StateAwaitingVerification, domain.StatePendingPayment, domain.RoleStaff},
	{ActionStartProduction, domain.StateVerified, domain.StateInProduction, domain.RoleStaff},
	{ActionDispatch, domain.StateInProduction, domain.StateInDelivery, domain.RoleStaff},
	{ActionConfirmReceipt, domain.StateInDelivery, domain.StateCompleted, domain.RoleCustomer},
	{ActionReviewProposal, domain.StateProposalSubmitted, domain.StateProposalReviewed, domain.RoleStaff},
	{ActionAcceptProposal, domain.StateProposalReviewed, domain.StatePendingPayment, domain.RoleCustomer},
	{ActionRejectProposal, domain.StateProposalReviewed, domain.StateCancelled, domain.RoleCustomer},
	{ActionFinalizeProposal, domain.StateProposalReviewed, domain.StatePendingPayment, domain.RoleStaff},
}

// Catalog orders can only be cancelled before they leave the workshop.
var catalogCancellable = map[domain.State]bool{
	domain.StateCreated:              true,
	domain.StatePendingPayment:       true,
	domain.StateAwaitingVerification: true,
	domain.StateVerified:             true,
	domain.StateInProduction:         true,
}

// idempotentTargets lists actions whose replay against an order already in
// the target state is accepted as a no-op.
var idempotentTargets = map[Action]domain.State{
	ActionStartProduction: domain.StateInProduction,
	ActionDispatch:        domain.StateInDelivery,
}

// Edges returns the full transition table for an order kind, cancel edges
// included.
func Edges(kind domain.OrderKind) []Edge {
	out := make([]Edge, 0, len(edges)+8)
	out = append(out, edges...)
	for _, s := range domain.States() {
		if s.Terminal() || !cancellable(kind, s) {
			continue
		}
		out = append(out, Edge{ActionCancel, s, domain.StateCancelled, domain.RoleStaff})
	}
	return out
}

func cancellable(kind domain.OrderKind, from domain.State) bool {
	if kind == domain.KindCustom {
		return !from.Terminal()
	}
	return catalogCancellable[from]
}

func lookup(kind domain.OrderKind, action Action, from domain.State) (Edge, bool) {
	if action == ActionCancel {
		if from.Terminal() || !cancellable(kind, from) {
			return Edge{}, false
		}
		return Edge{ActionCancel, from, domain.StateCancelled, domain.RoleStaff}, true
	}
	for _, e := range edges {
		if e.Action == action && e.From == from {
			return e, true
		}
	}
	return Edge{}, false
}

func edgeRole(action Action) domain.Role {
	if action == ActionCancel {
		return domain.RoleStaff
	}
	for _, e := range edges {
		if e.Action == action {
			return e.Actor
		}
	}
	return ""
}

// Input is a requested transition together with the evidence it carries.
type Input struct {
	Action     Action
	Actor      domain.Actor
	Reason     string
	Proof      string
	Evidence   domain.DeliveryEvidence
	PriceCents int64
	Note       string
}

type Outcome struct {
	From domain.State
	To   domain.State
	Noop bool
}

// Plan decides whether in may be applied to o. Checks run in a fixed order:
// idempotent replay, edge existence, actor role and ownership, then the
// action's own guards. Plan never mutates o.
func Plan(o domain.Order, in Input) (Outcome, error) {
	if replay(o, in) {
		return Outcome{From: o.State, To: o.State, Noop: true}, nil
	}
	if o.State.Terminal() {
		return Outcome{}, domain.InvalidTransition(string(in.Action), o.State)
	}
	edge, ok := lookup(o.Kind, in.Action, o.State)
	if !ok {
		return Outcome{}, domain.InvalidTransition(string(in.Action), o.State)
	}
	if in.Actor.Role != edge.Actor {
		return Outcome{}, domain.Unauthorized(string(in.Action), in.Actor.Role)
	}
	if edge.Actor == domain.RoleCustomer && o.CustomerID != "" && in.Actor.ID != o.CustomerID {
		return Outcome{}, domain.Unauthorized(string(in.Action), in.Actor.Role)
	}
	if err := guard(o, in); err != nil {
		return Outcome{}, err
	}
	return Outcome{From: edge.From, To: edge.To}, nil
}

func replay(o domain.Order, in Input) bool {
	target, ok := idempotentTargets[in.Action]
	if !ok || o.State != target || target.Terminal() {
		return false
	}
	if in.Actor.Role != edgeRole(in.Action) {
		return false
	}
	if in.Action == ActionDispatch {
		return o.Delivery != nil && o.Delivery.Same(in.Evidence)
	}
	return true
}

func guard(o domain.Order, in Input) error {
	action := string(in.Action)
	switch in.Action {
	case ActionUploadProof:
		if strings.TrimSpace(in.Proof) == "" {
			return domain.Validation("proofImage", "a payment proof image is required")
		}
	case ActionApprovePayment:
		if strings.TrimSpace(o.PaymentProof) == "" {
			return domain.PreconditionFailed(action, "paymentProof", "no payment proof has been uploaded")
		}
	case ActionRejectPayment, ActionCancel:
		if strings.TrimSpace(in.Reason) == "" {
			return domain.Validation("reason", "a reason is required")
		}
	case ActionDispatch:
		if in.Evidence.Empty() {
			return domain.PreconditionFailed(action, "deliveryEvidence", "a carrier reference or delivery photo is required")
		}
	case ActionReviewProposal:
		if in.PriceCents <= 0 {
			return domain.Validation("priceCents", "a positive price is required")
		}
	}
	return nil
}

// Apply returns a copy of o moved to out.To with the artifacts of in attached.
// It assumes Plan accepted in.
func Apply(o domain.Order, in Input, out Outcome) domain.Order {
	next := o
	next.State = out.To
	if out.Noop {
		return next
	}
	switch in.Action {
	case ActionUploadProof:
		next.PaymentProof = in.Proof
		next.PaymentRejection = ""
	case ActionRejectPayment:
		next.PaymentProof = ""
		next.PaymentRejection = strings.TrimSpace(in.Reason)
	case ActionDispatch:
		ev := in.Evidence
		ev.CarrierRef = strings.TrimSpace(ev.CarrierRef)
		next.Delivery = &ev
	case ActionCancel, ActionRejectProposal:
		next.CancelReason = strings.TrimSpace(in.Reason)
	case ActionReviewProposal:
		next.Proposal = &domain.Proposal{PriceCents: in.PriceCents, Note: strings.TrimSpace(in.Note)}
		next.TotalCents = in.PriceCents
	}
	return next
}

// Allowed lists the actions actor may currently request on o. Clients use it
// to hide controls the actor is not authorized for.
func Allowed(o domain.Order, actor domain.Actor) []Action {
	if o.State.Terminal() {
		return nil
	}
	var out []Action
	for _, e := range Edges(o.Kind) {
		if e.From != o.State || e.Actor != actor.Role {
			continue
		}
		if e.Actor == domain.RoleCustomer && o.CustomerID != "" && actor.ID != o.CustomerID {
			continue
		}
		out = append(out, e.Action)
	}
	return out
}
