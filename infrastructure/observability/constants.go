package observability

// Metric name prefixes
const (
	MetricPrefix = "colorgame"
)

// Metric names
const (
	// Bet metrics
	BetsPlacedTotal   = MetricPrefix + ".bets.placed_total"
	BetsRejectedTotal = MetricPrefix + ".bets.rejected_total"

	// Round metrics
	RoundsResolvedTotal = MetricPrefix + ".rounds.resolved_total"
	SettlementDuration  = MetricPrefix + ".rounds.settlement_duration"

	// Payout metrics
	PayoutsAmountTotal = MetricPrefix + ".payouts.amount_total"

	// Settlement failure metrics
	SettlementBetFailuresTotal = MetricPrefix + ".settlement.bet_failures_total"

	// Reconciliation metrics
	ReconcileActionsTotal = MetricPrefix + ".reconcile.actions_total"

	// Event metrics
	EventsPublishedTotal = MetricPrefix + ".events.published_total"
)

// Label keys
const (
	LabelDuration    = "duration"
	LabelReason      = "reason"
	LabelManipulated = "manipulated"
	LabelAction      = "action"
	LabelEventType   = "event_type"
)

// Reconciliation actions
const (
	ReconcileActionCreated  = "created"
	ReconcileActionForced   = "force_ended"
	ReconcileActionArmed    = "armed"
	ReconcileActionReplayed = "replayed"
)
