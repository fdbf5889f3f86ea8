// Package bracket implements the bracket order orchestration core:
// request validation and the entry-then-GTT-OCO state machine.
package bracket

import (
	"errors"
	"fmt"
	"strings"

	"trading-gatewayv1/internal/model"
)

// ValidationError carries the client-facing reason a request was rejected.
// MissingFields is populated only for the missing-mandatory-fields case.
type ValidationError struct {
	Reason        string
	MissingFields []string
}

func (e *ValidationError) Error() string { return e.Reason }

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// mandatoryFields in reporting order. The API key is validated separately.
var mandatoryFields = []string{
	"symbol", "exchange", "product", "action",
	"quantity", "entry_price", "sl_price", "target_price",
}

// Validate checks structural and semantic correctness of a bracket order
// request. Pure and deterministic: no I/O, no broker dependency. Checks run
// in a fixed order and short-circuit on the first failure.
func Validate(req model.BracketOrderRequest) error {
	if missing := missingFields(req); len(missing) > 0 {
		return &ValidationError{
			Reason:        "Missing mandatory field(s): " + strings.Join(missing, ", "),
			MissingFields: missing,
		}
	}

	if !contains(model.ValidExchanges, req.Exchange) {
		return &ValidationError{Reason: fmt.Sprintf(
			"Invalid exchange. Must be one of: %s", strings.Join(model.ValidExchanges, ", "))}
	}

	action := strings.ToUpper(req.Action)
	if action != "BUY" && action != "SELL" {
		return &ValidationError{Reason: "Invalid action. Must be BUY or SELL (case insensitive)"}
	}

	if *req.Quantity <= 0 {
		return &ValidationError{Reason: "Quantity must be greater than 0"}
	}

	entry, sl, target := *req.EntryPrice, *req.SLPrice, *req.TargetPrice
	switch {
	case entry <= 0:
		return &ValidationError{Reason: "Entry price must be greater than 0"}
	case sl <= 0:
		return &ValidationError{Reason: "SL price must be greater than 0"}
	case target <= 0:
		return &ValidationError{Reason: "Target price must be greater than 0"}
	}

	if action == "BUY" {
		if sl >= entry {
			return &ValidationError{Reason: "For BUY orders, SL price must be less than entry price"}
		}
		if target <= entry {
			return &ValidationError{Reason: "For BUY orders, target price must be greater than entry price"}
		}
	} else {
		if sl <= entry {
			return &ValidationError{Reason: "For SELL orders, SL price must be greater than entry price"}
		}
		if target >= entry {
			return &ValidationError{Reason: "For SELL orders, target price must be less than entry price"}
		}
	}

	if !contains(model.ValidProducts, req.Product) {
		return &ValidationError{Reason: fmt.Sprintf(
			"Invalid product type. Must be one of: %s", strings.Join(model.ValidProducts, ", "))}
	}

	return nil
}

func missingFields(req model.BracketOrderRequest) []string {
	var missing []string
	for _, f := range mandatoryFields {
		switch f {
		case "symbol":
			if req.Symbol == "" {
				missing = append(missing, f)
			}
		case "exchange":
			if req.Exchange == "" {
				missing = append(missing, f)
			}
		case "product":
			if req.Product == "" {
				missing = append(missing, f)
			}
		case "action":
			if req.Action == "" {
				missing = append(missing, f)
			}
		case "quantity":
			if req.Quantity == nil {
				missing = append(missing, f)
			}
		case "entry_price":
			if req.EntryPrice == nil {
				missing = append(missing, f)
			}
		case "sl_price":
			if req.SLPrice == nil {
				missing = append(missing, f)
			}
		case "target_price":
			if req.TargetPrice == nil {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
