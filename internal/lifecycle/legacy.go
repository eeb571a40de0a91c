package lifecycle

import (
	"fmt"
	"strings"

	"garment-storefront/internal/domain"
)

// Earlier storefront builds stored statuses in two vocabularies. Both are
// mapped onto the single State enum. "Sudah_Terkirim" means the parcel
// arrived but the customer has not confirmed, so it stays InDelivery.
var legacyStates = []struct {
	label string
	state domain.State
}{
	{"Pending", domain.StatePendingPayment},
	{"Menunggu_Pembayaran", domain.StatePendingPayment},
	{"Menunggu_Konfirmasi", domain.StateAwaitingVerification},
	{"Diproses", domain.StateInProduction},
	{"Sedang_Dikirim", domain.StateInDelivery},
	{"Sudah_Terkirim", domain.StateInDelivery},
	{"Selesai", domain.StateCompleted},
	{"Ditolak", domain.StateCancelled},
}

// FromLegacy maps a legacy status label to a State.
func FromLegacy(raw string) (domain.State, bool) {
	raw = strings.TrimSpace(raw)
	for _, l := range legacyStates {
		if strings.EqualFold(l.label, raw) {
			return l.state, true
		}
	}
	return "", false
}

// Aliases returns every stored label that means s: the canonical name first,
// then any legacy labels.
func Aliases(s domain.State) []string {
	out := []string{string(s)}
	for _, l := range legacyStates {
		if l.state == s {
			out = append(out, l.label)
		}
	}
	return out
}

// ParseState accepts canonical state names and legacy labels.
func ParseState(raw string) (domain.State, error) {
	if s, err := domain.ParseState(strings.TrimSpace(raw)); err == nil {
		return s, nil
	}
	if s, ok := FromLegacy(raw); ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown order state %q", raw)
}
