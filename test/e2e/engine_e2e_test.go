// test/e2e/engine_e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"application-engine/internal/common/logger"
	"application-engine/internal/engine"
	"application-engine/internal/engine/payment"
	"application-engine/internal/engine/providers"
	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
	"application-engine/internal/store"
	"application-engine/internal/template"
)

// fakeCharger is an in-memory payment collaborator.
type fakeCharger struct {
	created  int
	statuses map[string]payment.Status
	fail     bool
}

func (c *fakeCharger) CreateCharge(ctx context.Context, orgID string, items []models.LineItem) (models.ChargeRef, error) {
	if c.fail {
		return models.ChargeRef{}, fmt.Errorf("payment gateway unavailable")
	}
	c.created++
	ref := models.ChargeRef{ID: fmt.Sprintf("charge-%d", c.created), OrgID: orgID}
	c.statuses[ref.ID] = payment.ChargePending
	return ref, nil
}

func (c *fakeCharger) GetChargeStatus(ctx context.Context, ref models.ChargeRef) (payment.Status, error) {
	status, ok := c.statuses[ref.ID]
	if !ok {
		return "", fmt.Errorf("unknown charge %s", ref.ID)
	}
	return status, nil
}

func licenceSchema() *schema.Node {
	return schema.Object(map[string]*schema.Node{
		"applicant": schema.Object(map[string]*schema.Node{
			"name":  schema.String().WithLength(2, 100),
			"email": schema.String(),
		}, "name", "email"),
		"payment": schema.Object(map[string]*schema.Node{
			"lineItems": schema.Array(&schema.Node{Kind: schema.KindObject, Open: true}),
		}),
	}, "applicant")
}

// licenceTemplate models a licence application: an eligibility check,
// a form, a payment and a durable completed record.
func licenceTemplate() *template.Template {
	return &template.Template{
		TypeID:  "driving-licence",
		Initial: "PREREQUISITES",
		Schema:  licenceSchema(),
		Resolve: template.CombineResolvers(
			template.CreatorAs("applicant"),
			template.SubjectsAs("payment-callback", "pay-svc"),
		),
		States: map[string]template.State{
			"PREREQUISITES": {
				Name:      "PREREQUISITES",
				Status:    template.StatusDraft,
				Lifecycle: template.LifecyclePolicy{Kind: template.PolicyEphemeral},
				Scope:     schema.Scope{},
				OnEntry: []template.ProviderDecl{
					{Name: "registry.person", Required: true},
				},
				Roles: map[template.Role]template.RoleGrant{
					"applicant": {
						Events:   []template.Event{"CONTINUE", template.EventDelete},
						Readable: template.FieldMask{"*"},
						Writable: template.FieldMask{"applicant"},
					},
				},
				Transitions: map[template.Event]template.Transition{
					"CONTINUE": {Target: "DRAFT"},
				},
			},
			"DRAFT": {
				Name:      "DRAFT",
				Status:    template.StatusDraft,
				Lifecycle: template.LifecyclePolicy{Kind: template.PolicyEphemeral},
				Scope:     schema.Scope{"applicant"},
				Roles: map[template.Role]template.RoleGrant{
					"applicant": {
						Events:   []template.Event{"SUBMIT", template.EventDelete},
						Readable: template.FieldMask{"*"},
						Writable: template.FieldMask{"applicant", "payment"},
					},
				},
				Transitions: map[template.Event]template.Transition{
					"SUBMIT": {Target: "PAYMENT_PENDING"},
				},
			},
			"COMPLETED": {
				Name:      "COMPLETED",
				Status:    template.StatusCompleted,
				Lifecycle: template.LifecyclePolicy{Kind: template.PolicyDurable},
				Roles: map[template.Role]template.RoleGrant{
					"applicant": {Readable: template.FieldMask{"*"}},
				},
			},
		},
	}
}

type world struct {
	engine  *engine.Engine
	store   *store.MemoryStore
	charger *fakeCharger
}

func newWorld(t *testing.T) *world {
	t.Helper()

	charger := &fakeCharger{statuses: map[string]payment.Status{}}
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register("registry.person", func(ctx context.Context, app *models.Application) (interface{}, error) {
		return map[string]interface{}{"eligible": true}, nil
	}))

	tpl := licenceTemplate()
	fragment := payment.Fragment{
		OrgID:        "org-transport",
		LineItems:    payment.LineItemsFromAnswers("payment.lineItems"),
		OnConfirmed:  "COMPLETED",
		PayerRole:    "applicant",
		CallbackRole: "payment-callback",
	}
	require.NoError(t, fragment.Splice(tpl, registry, charger))

	templates := template.NewRegistry()
	require.NoError(t, templates.Register(tpl))

	log := logger.NewTestLogger(t)
	mem := store.NewMemoryStore()
	eng := engine.New(templates, mem, providers.New(registry, time.Second, log), log)

	return &world{engine: eng, store: mem, charger: charger}
}

func (w *world) apply(t *testing.T, id string, event template.Event, subject string, payload map[string]interface{}) *models.Application {
	t.Helper()
	app, err := w.engine.ApplyEvent(context.Background(), id, event, models.Identity{SubjectID: subject}, payload)
	require.NoError(t, err)
	return app
}

func TestLicenceApplication_FullWalk(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	app, err := w.engine.Start(ctx, "driving-licence", models.Identity{SubjectID: "citizen-1"})
	require.NoError(t, err)
	assert.Equal(t, "PREREQUISITES", app.State)
	assert.Equal(t, models.FetchSuccess, app.ExternalData["registry.person"].Status)
	assert.NotNil(t, app.PruneAt, "an abandoned application gets pruned")

	app = w.apply(t, app.ID, "CONTINUE", "citizen-1", map[string]interface{}{
		"applicant": map[string]interface{}{
			"name":  "Sigrun Palsdottir",
			"email": "sigrun@example.com",
		},
	})
	assert.Equal(t, "DRAFT", app.State)

	app = w.apply(t, app.ID, "SUBMIT", "citizen-1", map[string]interface{}{
		"payment": map[string]interface{}{
			"lineItems": []interface{}{
				map[string]interface{}{"code": "LIC-B", "quantity": float64(1), "amount": float64(8000), "currency": "ISK"},
			},
		},
	})
	assert.Equal(t, "PAYMENT_PENDING", app.State)

	app = w.apply(t, app.ID, payment.EventSubmit, "citizen-1", nil)
	assert.Equal(t, "PAYMENT_CHARGE_SUBMITTED", app.State)
	assert.Equal(t, 1, w.charger.created)
	entry := app.ExternalData["payment.charge"]
	assert.Equal(t, models.FetchSuccess, entry.Status)

	// Only the payment callback identity may confirm.
	_, err = w.engine.ApplyEvent(ctx, app.ID, payment.EventConfirm,
		models.Identity{SubjectID: "citizen-1"}, nil)
	require.Error(t, err)

	app = w.apply(t, app.ID, payment.EventConfirm, "pay-svc", nil)
	assert.Equal(t, "PAYMENT_CONFIRMED", app.State)
	assert.Nil(t, app.PruneAt, "a paid application is kept forever")

	// A re-delivered confirmation callback is acknowledged without a
	// second transition.
	_, versionBefore, err := w.store.Load(ctx, app.ID)
	require.NoError(t, err)
	again := w.apply(t, app.ID, payment.EventConfirm, "pay-svc", nil)
	assert.Equal(t, "PAYMENT_CONFIRMED", again.State)
	_, versionAfter, err := w.store.Load(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, versionAfter)
	assert.Equal(t, 1, w.charger.created, "no duplicate charge")

	app = w.apply(t, app.ID, payment.EventContinue, "citizen-1", nil)
	assert.Equal(t, "COMPLETED", app.State)

	// The audit trail tells the whole story.
	events := make([]string, 0, len(app.Audit))
	for _, record := range app.Audit {
		events = append(events, record.Event)
	}
	assert.Equal(t, []string{"CONTINUE", "SUBMIT", "SUBMIT", "CONFIRM", "CONTINUE"}, events)
}

func TestLicenceApplication_PaymentFailureAndRetry(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	app, err := w.engine.Start(ctx, "driving-licence", models.Identity{SubjectID: "citizen-1"})
	require.NoError(t, err)
	app = w.apply(t, app.ID, "CONTINUE", "citizen-1", map[string]interface{}{
		"applicant": map[string]interface{}{
			"name":  "Sigrun Palsdottir",
			"email": "sigrun@example.com",
		},
	})
	app = w.apply(t, app.ID, "SUBMIT", "citizen-1", nil)

	// Gateway down: entering CHARGE_SUBMITTED fails and the
	// application stays in PENDING.
	w.charger.fail = true
	_, err = w.engine.ApplyEvent(ctx, app.ID, payment.EventSubmit,
		models.Identity{SubjectID: "citizen-1"}, nil)
	require.Error(t, err)
	current, _, err := w.store.Load(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_PENDING", current.State)

	// Gateway back: the retry goes through.
	w.charger.fail = false
	app = w.apply(t, app.ID, payment.EventSubmit, "citizen-1", nil)
	assert.Equal(t, "PAYMENT_CHARGE_SUBMITTED", app.State)

	// The callback reports the charge failed; the payer retries with a
	// fresh charge.
	ref, ok := payment.Fragment{}.ChargeRefFrom(app)
	require.True(t, ok)
	w.charger.statuses[ref.ID] = payment.ChargeFailed

	app = w.apply(t, app.ID, payment.EventFail, "pay-svc", nil)
	assert.Equal(t, "PAYMENT_FAILED", app.State)

	app = w.apply(t, app.ID, payment.EventRetry, "citizen-1", nil)
	assert.Equal(t, "PAYMENT_PENDING", app.State)

	app = w.apply(t, app.ID, payment.EventSubmit, "citizen-1", nil)
	assert.Equal(t, "PAYMENT_CHARGE_SUBMITTED", app.State)
	assert.Equal(t, 2, w.charger.created, "terminal charge is replaced, not reused")
}
