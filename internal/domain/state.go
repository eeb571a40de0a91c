package domain

import "fmt"

type State string

const (
	StateCreated              State = "Created"
	StatePendingPayment       State = "PendingPayment"
	StateAwaitingVerification State = "AwaitingVerification"
	StateVerified             State = "Verified"
	StateInProduction         State = "InProduction"
	StateInDelivery           State = "InDelivery"
	StateCompleted            State = "Completed"
	StateCancelled            State = "Cancelled"
	StateProposalSubmitted    State = "ProposalSubmitted"
	StateProposalReviewed     State = "ProposalReviewed"
)

var allStates = []State{
	StateCreated,
	StatePendingPayment,
	StateAwaitingVerification,
	StateVerified,
	StateInProduction,
	StateInDelivery,
	StateCompleted,
	StateCancelled,
	StateProposalSubmitted,
	StateProposalReviewed,
}

// States returns every state in lifecycle order.
func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

func (s State) Valid() bool {
	for _, st := range allStates {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order state %q", raw)
	}
	return s, nil
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleSystem:
		return true
	}
	return false
}

// Actor is the authenticated principal behind a request.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// System is the actor used for transitions the platform performs itself.
var System = Actor{ID: "system", Role: RoleSystem}
