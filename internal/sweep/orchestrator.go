package sweep

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pipewise/pipeline-engine/internal/crm"
	"github.com/pipewise/pipeline-engine/internal/notifications"
	"github.com/pipewise/pipeline-engine/internal/observability/metrics"
	"github.com/pipewise/pipeline-engine/internal/tips"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

var sweepTracer = otel.Tracer("pipeline.internal.sweep")

// Classification reasons, checked in this order. The first reason that
// applies wins; a contact never appears twice in the same run.
const (
	ReasonStale      = "stale"
	ReasonOverdue    = "overdue"
	ReasonDueToday   = "due_today"
	ReasonUnassigned = "unassigned"
)

const (
	staleAfterDays   = 5
	unownedAfterDays = 3
	bucketCap        = 15
)

var typeByReason = map[string]string{
	ReasonStale:      notifications.TypeDealStale,
	ReasonOverdue:    notifications.TypeTaskOverdue,
	ReasonDueToday:   notifications.TypeTaskDueToday,
	ReasonUnassigned: notifications.TypeDealUnassigned,
}

// ContactSource is the slice of the contact store the sweep reads.
type ContactSource interface {
	ListOrgIDs(ctx context.Context) ([]string, error)
	ListActiveByOrg(ctx context.Context, orgID string) ([]*crm.ContactSnapshot, error)
	ListAdmins(ctx context.Context, orgID string) ([]crm.User, error)
}

// NotificationSink persists the sweep's output.
type NotificationSink interface {
	BulkCreate(ctx context.Context, ns []*notifications.Notification) (int, error)
}

// Deduper suppresses candidates already notified inside the window.
type Deduper interface {
	FilterNew(ctx context.Context, orgID string, now time.Time, candidates []*notifications.Notification) ([]*notifications.Notification, error)
}

// TipSource produces one tip per contact for a whole bucket at once.
type TipSource interface {
	ForBucket(ctx context.Context, contacts []tips.ContactSummary) (map[string]string, int)
}

// flagged pairs a contact with the reason it entered a user's bucket.
type flagged struct {
	contact   *crm.ContactSnapshot
	reason    string
	daysStale int
}

// Summary is the aggregate outcome of one full sweep.
type Summary struct {
	Tenants    int `json:"tenants"`
	Failed     int `json:"failed"`
	Flagged    int `json:"flagged"`
	Created    int `json:"created"`
	Suppressed int `json:"suppressed"`
}

// Orchestrator runs the periodic notification sweep across all tenants.
// It is safe under overlapping invocations: correctness comes from the
// Deduper's trailing window, not from any lock.
type Orchestrator struct {
	contacts ContactSource
	sink     NotificationSink
	guard    Deduper
	tips     TipSource
	loc      *time.Location
	metrics  *metrics.SweepMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewOrchestrator wires a sweep orchestrator. m may be nil.
func NewOrchestrator(contacts ContactSource, sink NotificationSink, guard Deduper, tipSource TipSource, loc *time.Location, m *metrics.SweepMetrics, logger *logging.Logger) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		contacts: contacts,
		sink:     sink,
		guard:    guard,
		tips:     tipSource,
		loc:      loc,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps every tenant. A failing tenant is logged and counted but
// never aborts the others; the returned error covers only the org listing.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	orgIDs, err := o.contacts.ListOrgIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("sweep: list orgs: %w", err)
	}

	var sum Summary
	for _, orgID := range orgIDs {
		sum.Tenants++
		created, suppressed, flaggedCount, err := o.runTenant(ctx, orgID)
		if err != nil {
			sum.Failed++
			o.logger.Error("sweep: tenant failed", "org_id", orgID, "error", err)
			continue
		}
		sum.Created += created
		sum.Suppressed += suppressed
		sum.Flagged += flaggedCount
	}

	o.logger.Info("sweep: run finished",
		"tenants", sum.Tenants,
		"failed", sum.Failed,
		"flagged", sum.Flagged,
		"created", sum.Created,
		"suppressed", sum.Suppressed,
	)
	return sum, nil
}

func (o *Orchestrator) runTenant(ctx context.Context, orgID string) (created, suppressed, flaggedCount int, err error) {
	ctx, span := sweepTracer.Start(ctx, "sweep.tenant")
	span.SetAttributes(attribute.String("org_id", orgID))
	start := o.now()
	defer func() {
		status := "ok"
		if err != nil {
			span.RecordError(err)
			status = "error"
		}
		o.metrics.ObserveTenant(status, time.Since(start).Seconds())
		span.End()
	}()

	contacts, err := o.contacts.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return 0, 0, 0, err
	}

	buckets, err := o.classify(ctx, orgID, contacts)
	if err != nil {
		return 0, 0, 0, err
	}

	var candidates []*notifications.Notification
	for _, userID := range sortedKeys(buckets) {
		bucket := buckets[userID]
		flaggedCount += len(bucket)
		candidates = append(candidates, o.notificationsForBucket(ctx, orgID, userID, bucket)...)
	}
	if len(candidates) == 0 {
		return 0, 0, flaggedCount, nil
	}

	fresh, err := o.guard.FilterNew(ctx, orgID, o.now(), candidates)
	if err != nil {
		return 0, 0, flaggedCount, err
	}
	suppressed = len(candidates) - len(fresh)
	o.metrics.ObserveSuppressed(suppressed)

	created, err = o.sink.BulkCreate(ctx, fresh)
	if err != nil {
		return created, suppressed, flaggedCount, err
	}
	for _, n := range fresh {
		if reason, ok := n.Metadata["reason"].(string); ok {
			o.metrics.ObserveNotifications(reason, 1)
		}
	}
	return created, suppressed, flaggedCount, nil
}

// classify sorts contacts into per-user buckets. Reasons are checked in a
// fixed order and the first match wins; unowned contacts land in every
// admin's bucket. Each bucket is capped.
func (o *Orchestrator) classify(ctx context.Context, orgID string, contacts []*crm.ContactSnapshot) (map[string][]flagged, error) {
	now := o.now()
	buckets := make(map[string][]flagged)
	var admins []crm.User
	adminsLoaded := false

	add := func(userID string, f flagged) {
		if len(buckets[userID]) >= bucketCap {
			return
		}
		buckets[userID] = append(buckets[userID], f)
	}

	for _, c := range contacts {
		switch {
		case c.OwnerUserID != nil && crm.DaysSince(now, c.UpdatedAt) >= staleAfterDays:
			add(*c.OwnerUserID, flagged{contact: c, reason: ReasonStale, daysStale: crm.DaysSince(now, c.UpdatedAt)})

		case c.OwnerUserID != nil && c.NextActionDate != nil && crm.DaysOverdue(now, *c.NextActionDate, o.loc) > 0:
			add(*c.OwnerUserID, flagged{contact: c, reason: ReasonOverdue, daysStale: crm.DaysOverdue(now, *c.NextActionDate, o.loc)})

		case c.OwnerUserID != nil && c.NextActionDate != nil && crm.DaysOverdue(now, *c.NextActionDate, o.loc) == 0:
			add(*c.OwnerUserID, flagged{contact: c, reason: ReasonDueToday})

		case c.OwnerUserID == nil && crm.DaysSince(now, c.CreatedAt) >= unownedAfterDays:
			if !adminsLoaded {
				var err error
				admins, err = o.contacts.ListAdmins(ctx, orgID)
				if err != nil {
					return nil, err
				}
				adminsLoaded = true
			}
			for _, admin := range admins {
				add(admin.ID, flagged{contact: c, reason: ReasonUnassigned, daysStale: crm.DaysSince(now, c.CreatedAt)})
			}
		}
	}
	return buckets, nil
}

// notificationsForBucket fetches one batch of tips for the whole bucket
// and builds one candidate notification per flagged contact.
func (o *Orchestrator) notificationsForBucket(ctx context.Context, orgID, userID string, bucket []flagged) []*notifications.Notification {
	summaries := make([]tips.ContactSummary, len(bucket))
	for i, f := range bucket {
		s := tips.ContactSummary{
			ID:        f.contact.ID.String(),
			Name:      f.contact.Name,
			Stage:     string(f.contact.Stage),
			Reason:    f.reason,
			DaysStale: f.daysStale,
		}
		if f.contact.EstimatedValue != nil {
			s.Value = *f.contact.EstimatedValue
		}
		summaries[i] = s
	}

	tipByID, fallbacks := o.tips.ForBucket(ctx, summaries)
	if fallbacks > 0 {
		o.metrics.ObserveTipFallback()
	}

	out := make([]*notifications.Notification, 0, len(bucket))
	for _, f := range bucket {
		uid := userID
		cid := f.contact.ID
		out = append(out, &notifications.Notification{
			OrgID:     orgID,
			UserID:    &uid,
			Type:      typeByReason[f.reason],
			Title:     titleFor(f),
			Body:      tipByID[f.contact.ID.String()],
			ContactID: &cid,
			Metadata: map[string]any{
				"reason":     f.reason,
				"days_stale": f.daysStale,
			},
		})
	}
	return out
}

func titleFor(f flagged) string {
	switch f.reason {
	case ReasonStale:
		return fmt.Sprintf("%s has gone quiet", f.contact.Name)
	case ReasonOverdue:
		return fmt.Sprintf("Overdue action on %s", f.contact.Name)
	case ReasonDueToday:
		return fmt.Sprintf("Action due today on %s", f.contact.Name)
	case ReasonUnassigned:
		return fmt.Sprintf("%s still has no owner", f.contact.Name)
	default:
		return f.contact.Name
	}
}

func sortedKeys(m map[string][]flagged) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
