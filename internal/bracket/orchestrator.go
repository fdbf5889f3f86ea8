package bracket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"trading-gatewayv1/internal/broker"
	"trading-gatewayv1/internal/logger"
	"trading-gatewayv1/internal/markethours"
	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/model"
	"trading-gatewayv1/internal/notification"
)

// APIType tags order-log records and alerts from this endpoint.
const APIType = "placebracketorder"

// DefaultGraceDelay is how long the async stage waits for the entry order
// to settle broker-side before placing the GTT OCO pair.
const DefaultGraceDelay = 500 * time.Millisecond

// OrchestratorConfig wires the orchestrator's collaborators. Auth, Brokers,
// Journal, and Events are required; Alerts, Metrics, and GraceDelay are
// optional.
type OrchestratorConfig struct {
	Auth    model.Authenticator
	Brokers *broker.Registry
	Journal model.OrderLogger
	Events  model.EventPublisher
	Alerts  notification.Notifier
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	GraceDelay time.Duration
}

// Orchestrator runs the bracket order state machine: validate,
// authenticate, place the entry synchronously, then place the protective
// GTT OCO pair from a detached background task. Each Place call is fully
// independent; the only state shared across requests is the WaitGroup used
// to drain background tasks at shutdown.
type Orchestrator struct {
	auth    model.Authenticator
	brokers *broker.Registry
	journal model.OrderLogger
	events  model.EventPublisher
	alerts  notification.Notifier
	logger  *slog.Logger
	metrics *metrics.Metrics
	grace   time.Duration

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	alerts := cfg.Alerts
	if alerts == nil {
		alerts = notification.NewLogNotifier()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.GraceDelay
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	return &Orchestrator{
		auth:    cfg.Auth,
		brokers: cfg.Brokers,
		journal: cfg.Journal,
		events:  cfg.Events,
		alerts:  alerts,
		logger:  logger,
		metrics: cfg.Metrics,
		grace:   grace,
	}
}

// Place runs one bracket order end to end and returns the synchronous
// response body plus its HTTP status. The call returns as soon as the entry
// order is confirmed; the OCO stage reports only through events, the order
// log, and alerts.
func (o *Orchestrator) Place(ctx context.Context, req model.BracketOrderRequest) (model.BracketOrderResponse, int) {
	apiKey := req.APIKey
	logReq := req.Redacted()

	log := o.logger
	if tid := logger.TraceID(ctx); tid != "" {
		log = log.With("trace_id", tid)
	}

	if err := Validate(req); err != nil {
		resp := errorResponse(err.Error())
		o.journal.Log(APIType, logReq, resp)
		log.Warn("bracket order validation failed",
			"symbol", req.Symbol, "reason", err.Error())
		o.countOrder("validation_error")
		return resp, http.StatusBadRequest
	}

	sess, err := o.auth.Resolve(ctx, apiKey)
	if err != nil || sess.AuthToken == "" || sess.Broker == "" {
		log.Error("bracket order authentication failed", "err", err)
		o.countOrder("auth_error")
		return errorResponse("Invalid API key or authentication failed"), http.StatusUnauthorized
	}

	b, err := o.brokers.Resolve(sess.Broker)
	if err != nil {
		resp := errorResponse("Broker-specific module not found")
		o.journal.Log(APIType, logReq, resp)
		log.Error("broker module not found", "broker", sess.Broker)
		o.countOrder("broker_not_found")
		return resp, http.StatusNotFound
	}

	action := strings.ToUpper(req.Action)
	// Bracket entries are always limit orders in the regular book. The
	// request's pricetype/ordertype only affect the echoed ack and the
	// journal payload.
	entry := broker.EntryOrder{
		Symbol:    req.Symbol,
		Exchange:  req.Exchange,
		Product:   req.Product,
		Action:    action,
		Quantity:  *req.Quantity,
		Price:     *req.EntryPrice,
		PriceType: model.DefaultPriceType,
		OrderType: model.DefaultOrderType,
		Validity:  req.Validity,
		Tag:       req.Tag,
	}

	if req.Exchange == "NSE" || req.Exchange == "BSE" {
		if now := time.Now(); !markethours.IsMarketOpen(now) {
			log.Warn("entry order placed outside market hours",
				"symbol", req.Symbol, "status", markethours.StatusString(now))
		}
	}

	log.Info("placing entry order",
		"symbol", req.Symbol, "exchange", req.Exchange, "action", action,
		"quantity", *req.Quantity, "price", *req.EntryPrice, "broker", sess.Broker)

	start := time.Now()
	res, err := b.PlaceEntry(ctx, sess.AuthToken, entry)
	o.observeEntry(time.Since(start))

	if err != nil || !res.Success {
		reason := res.Message
		if err != nil {
			reason = err.Error()
		}
		if reason == "" {
			reason = "Failed to place entry order"
		}
		resp := errorResponse("Entry order failed: " + reason)
		o.journal.Log(APIType, logReq, resp)
		log.Error("entry order placement failed",
			"symbol", req.Symbol, "reason", reason)
		o.countOrder("entry_failed")
		return resp, http.StatusBadRequest
	}

	entryID := res.OrderID
	o.journal.Log(APIType, logReq, map[string]any{
		"status":             "success",
		"message":            "Entry order placed successfully",
		"entry_order_id":     entryID,
		"entry_order_status": "PENDING",
	})
	o.publish(model.BracketOrderEvent{
		Symbol:       req.Symbol,
		Status:       model.EventEntryPlaced,
		EntryOrderID: entryID,
		Message:      "Entry order placed successfully",
	})
	log.Info("entry order placed", "symbol", req.Symbol, "entry_order_id", entryID)

	// Fire-and-forget protective pair. The synchronous path never waits on
	// or observes this task; its outcome surfaces only via events.
	o.wg.Add(1)
	go o.placeProtectivePair(log, b, sess, logReq, apiKey, action, entryID)

	resp := model.BracketOrderResponse{
		Status:       "success",
		Message:      "Bracket order initiated - entry order placed, GTT orders pending",
		EntryOrderID: entryID,
		Symbol:       req.Symbol,
		EntryPrice:   *req.EntryPrice,
		SLPrice:      *req.SLPrice,
		TargetPrice:  *req.TargetPrice,
		Quantity:     *req.Quantity,
		Action:       action,
	}
	o.sendAlert(logReq, resp, apiKey)
	o.countOrder("success")
	return resp, http.StatusOK
}

// placeProtectivePair is the asynchronous OCO stage. It always reaches
// exactly one terminal state and never lets a failure escape: by the time
// it runs, the synchronous response has already been sent.
func (o *Orchestrator) placeProtectivePair(log *slog.Logger, b broker.Broker, sess model.Session, logReq model.BracketOrderRequest, apiKey, action, entryID string) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("GTT order error: %v", r)
			log.Error("panic during GTT placement", "entry_order_id", entryID, "panic", r)
			o.journal.Log(APIType, logReq, map[string]any{
				"status":         "error",
				"message":        msg,
				"entry_order_id": entryID,
			})
			o.publish(model.BracketOrderEvent{
				Symbol:       logReq.Symbol,
				Status:       model.EventError,
				EntryOrderID: entryID,
				Message:      msg,
			})
			o.countOutcome("error")
		}
	}()

	// Let the entry order register in the broker's system first.
	time.Sleep(o.grace)

	placer, ok := b.(broker.OCOPlacer)
	if !ok {
		log.Warn("broker does not support GTT orders",
			"broker", b.Name(), "entry_order_id", entryID)
		o.journal.Log(APIType, logReq, map[string]any{
			"status":         "warning",
			"message":        "Entry order placed successfully but broker does not support GTT orders for SL and Target",
			"entry_order_id": entryID,
		})
		o.publish(model.BracketOrderEvent{
			Symbol:       logReq.Symbol,
			Status:       model.EventPartialCompletion,
			EntryOrderID: entryID,
			Message:      "Only entry order placed - GTT not supported by broker",
		})
		o.countOutcome("unsupported")
		return
	}

	oco := broker.OCOOrder{
		Symbol:      logReq.Symbol,
		Exchange:    logReq.Exchange,
		Product:     logReq.Product,
		Action:      action,
		Quantity:    *logReq.Quantity,
		SLPrice:     *logReq.SLPrice,
		TargetPrice: *logReq.TargetPrice,
	}
	log.Info("placing GTT OCO orders",
		"symbol", logReq.Symbol, "entry_order_id", entryID, "broker", b.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	res, err := placer.PlaceOCO(ctx, sess.AuthToken, oco)
	o.observeOCO(time.Since(start))

	if err != nil {
		msg := "GTT order error: " + err.Error()
		log.Error("GTT OCO placement errored", "entry_order_id", entryID, "err", err)
		o.journal.Log(APIType, logReq, map[string]any{
			"status":         "error",
			"message":        msg,
			"entry_order_id": entryID,
		})
		o.publish(model.BracketOrderEvent{
			Symbol:       logReq.Symbol,
			Status:       model.EventError,
			EntryOrderID: entryID,
			Message:      msg,
		})
		o.countOutcome("error")
		return
	}

	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "Failed to place GTT orders"
		}
		msg := "Entry order placed but GTT OCO order failed: " + reason
		log.Error("GTT OCO placement rejected", "entry_order_id", entryID, "reason", reason)
		o.journal.Log(APIType, logReq, map[string]any{
			"status":         "partial",
			"message":        msg,
			"entry_order_id": entryID,
		})
		o.publish(model.BracketOrderEvent{
			Symbol:       logReq.Symbol,
			Status:       model.EventPartialFailure,
			EntryOrderID: entryID,
			Message:      msg,
		})
		o.countOutcome("partial_failure")
		return
	}

	// Some brokers only report a GTT group id; it stands in for the target.
	targetID := res.TargetOrderID
	if targetID == "" {
		targetID = res.GroupID
	}

	o.journal.Log(APIType, logReq, map[string]any{
		"status":           "success",
		"message":          "Bracket order completed successfully",
		"bracket_order_id": entryID + "_GTT",
		"entry_order_id":   entryID,
		"sl_order_id":      res.SLOrderID,
		"target_order_id":  targetID,
		"gtt_order_id":     res.GroupID,
	})
	o.publish(model.BracketOrderEvent{
		Symbol:        logReq.Symbol,
		Status:        model.EventCompleted,
		EntryOrderID:  entryID,
		SLOrderID:     res.SLOrderID,
		TargetOrderID: targetID,
		Message:       "Bracket order completed successfully with GTT OCO",
	})
	log.Info("bracket order completed",
		"symbol", logReq.Symbol, "entry_order_id", entryID,
		"sl_order_id", res.SLOrderID, "target_order_id", targetID)

	o.sendAlert(logReq, model.BracketOrderResponse{
		Status:        "success",
		Message:       "Bracket order completed successfully",
		EntryOrderID:  entryID,
		Symbol:        logReq.Symbol,
		SLOrderID:     res.SLOrderID,
		TargetOrderID: targetID,
		GTTOrderID:    res.GroupID,
	}, apiKey)
	o.countOutcome("completed")
}

// Close drains outstanding background tasks. New Place calls after Close
// are the caller's responsibility to prevent.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) publish(ev model.BracketOrderEvent) {
	if err := o.events.Publish(context.Background(), ev); err != nil {
		o.logger.Warn("event publish failed", "status", ev.Status, "symbol", ev.Symbol, "err", err)
	}
}

func (o *Orchestrator) sendAlert(req model.BracketOrderRequest, resp model.BracketOrderResponse, apiKey string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.alerts.Send(ctx, notification.OrderAlert(APIType, req, resp, apiKey)); err != nil {
			o.logger.Warn("order alert delivery failed", "err", err)
			if o.metrics != nil {
				o.metrics.AlertsFailed.Inc()
			}
			return
		}
		if o.metrics != nil {
			o.metrics.AlertsSent.Inc()
		}
	}()
}

func errorResponse(message string) model.BracketOrderResponse {
	return model.BracketOrderResponse{Status: "error", Message: message}
}

func (o *Orchestrator) countOrder(result string) {
	if o.metrics != nil {
		o.metrics.BracketOrdersTotal.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.OCOOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) observeEntry(d time.Duration) {
	if o.metrics != nil {
		o.metrics.EntryPlaceDur.Observe(d.Seconds())
	}
}

func (o *Orchestrator) observeOCO(d time.Duration) {
	if o.metrics != nil {
		o.metrics.OCOPlaceDur.Observe(d.Seconds())
	}
}
