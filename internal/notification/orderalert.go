package notification

import (
	"fmt"
	"strings"

	"trading-gatewayv1/internal/model"
)

// OrderAlert formats a bracket order request/response pair as an Alert for
// the fire-and-forget alert channel. The caller's API key is masked down to
// a short prefix so alerts can be correlated without leaking the credential.
func OrderAlert(apiType string, req model.BracketOrderRequest, resp model.BracketOrderResponse, apiKey string) Alert {
	level := AlertInfo
	if resp.Status != "success" {
		level = AlertWarning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s on %s", strings.ToUpper(req.Action), req.Symbol, req.Product, req.Exchange)
	if req.Quantity != nil {
		fmt.Fprintf(&b, " qty=%d", *req.Quantity)
	}
	if req.EntryPrice != nil && req.SLPrice != nil && req.TargetPrice != nil {
		fmt.Fprintf(&b, " entry=%.2f sl=%.2f target=%.2f", *req.EntryPrice, *req.SLPrice, *req.TargetPrice)
	}
	b.WriteString("\n")
	b.WriteString(resp.Message)
	if resp.EntryOrderID != "" {
		fmt.Fprintf(&b, "\nentry_order_id: %s", resp.EntryOrderID)
	}
	if resp.SLOrderID != "" {
		fmt.Fprintf(&b, "\nsl_order_id: %s", resp.SLOrderID)
	}
	if resp.TargetOrderID != "" {
		fmt.Fprintf(&b, "\ntarget_order_id: %s", resp.TargetOrderID)
	}
	if apiKey != "" {
		fmt.Fprintf(&b, "\napikey: %s", maskKey(apiKey))
	}

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s: %s", apiType, resp.Status),
		Message: b.String(),
	}
}

func maskKey(key string) string {
	if len(key) <= 6 {
		return "******"
	}
	return key[:6] + "..."
}
