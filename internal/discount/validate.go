package discount

import (
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
)

// Reason explains why a code was rejected. The zero value means valid.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotFound        Reason = "not_found"
	ReasonInactive        Reason = "inactive"
	ReasonNotStarted      Reason = "not_started"
	ReasonExpired         Reason = "expired"
	ReasonExhausted       Reason = "exhausted"
	ReasonMinimumNotMet   Reason = "minimum_not_met"
	ReasonNoMatchingItems Reason = "no_matching_items"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:        "The discount code you entered is invalid.",
	ReasonInactive:        "The discount code you entered is invalid.",
	ReasonNotStarted:      "The discount code you entered is not valid yet.",
	ReasonExpired:         "The discount code you entered has expired.",
	ReasonExhausted:       "The discount code you entered has been used up.",
	ReasonMinimumNotMet:   "Your cart does not meet the minimum purchase for this discount code.",
	ReasonNoMatchingItems: "The discount code you entered does not apply to any items in your cart.",
}

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Err converts the reason into an EINVALID domain error, or nil for ReasonNone.
func (r Reason) Err() error {
	if r == ReasonNone {
		return nil
	}
	return &domain.Error{Code: domain.EINVALID, Op: "discount.validate", Message: r.Message()}
}

// ErrFreeShippingOption is the soft error raised when a free-shipping code is
// combined with a non-default shipping option.
var ErrFreeShippingOption = &domain.Error{
	Code:    domain.EINVALID,
	Message: "Free shipping not valid with that shipping option",
}

// CartSnapshot is the plain-value view of a cart that validation needs.
type CartSnapshot struct {
	Currency   string
	Subtotal   domain.Money
	Variations []domain.Variation
}

// Result is Valid(rule) when Reason is empty, Invalid(reason) otherwise.
type Result struct {
	Rule   *domain.DiscountRule
	Reason Reason
}

func (r Result) Valid() bool {
	return r.Reason == ReasonNone && r.Rule != nil
}

func invalid(reason Reason) Result {
	return Result{Reason: reason}
}

// Validate runs the code-entry checks in order: existence, active flag,
// validity window, usage cap, minimum purchase, and scope overlap with the cart.
func Validate(rule *domain.DiscountRule, snap CartSnapshot, now time.Time) Result {
	if rule == nil {
		return invalid(ReasonNotFound)
	}
	if !rule.Active {
		return invalid(ReasonInactive)
	}
	if rule.Window.From != nil && now.Before(*rule.Window.From) {
		return invalid(ReasonNotStarted)
	}
	if rule.Window.To != nil && now.After(*rule.Window.To) {
		return invalid(ReasonExpired)
	}
	if rule.UsageCap != 0 && rule.UsesRemaining() <= 0 {
		return invalid(ReasonExhausted)
	}
	if !MeetsMinimum(rule, snap.Subtotal, snap.Currency) {
		return invalid(ReasonMinimumNotMet)
	}
	if !rule.Scope.Empty() && len(EligibleSKUs(rule, snap.Variations)) == 0 {
		return invalid(ReasonNoMatchingItems)
	}
	return Result{Rule: rule}
}

// CheckFreeShipping decides whether a rule's free shipping is granted for the
// selected option. A mismatch returns ErrFreeShippingOption; the discount
// amount itself still applies.
func CheckFreeShipping(rule *domain.DiscountRule, selected, regionDefault string) (bool, error) {
	if rule == nil || !rule.FreeShipping {
		return false, nil
	}
	if selected == "" || selected == regionDefault {
		return true, nil
	}
	return false, ErrFreeShippingOption
}
