// Package payment provides the reusable payment state fragment any
// template can splice into its graph: PENDING, CHARGE_SUBMITTED,
// CONFIRMED and FAILED, wired to an external charge collaborator.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"application-engine/internal/engine/providers"
	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
	"application-engine/internal/template"
)

// Status is the charge state reported by the payment collaborator.
type Status string

const (
	ChargePending   Status = "pending"
	ChargeConfirmed Status = "confirmed"
	ChargeFailed    Status = "failed"
)

// Terminal reports whether the charge can no longer change.
func (s Status) Terminal() bool {
	return s == ChargeConfirmed || s == ChargeFailed
}

// Charger is the external payment collaborator.
type Charger interface {
	CreateCharge(ctx context.Context, orgID string, items []models.LineItem) (models.ChargeRef, error)
	GetChargeStatus(ctx context.Context, ref models.ChargeRef) (Status, error)
}

// Events raised within the fragment.
const (
	EventSubmit   template.Event = "SUBMIT"
	EventConfirm  template.Event = "CONFIRM"
	EventFail     template.Event = "FAIL"
	EventRetry    template.Event = "RETRY"
	EventContinue template.Event = "CONTINUE"
)

// Fragment parameterizes one spliced payment flow.
type Fragment struct {
	// Prefix namespaces the fragment's state names, default "PAYMENT_".
	Prefix string
	// OrgID identifies the receiving organization on created charges.
	OrgID string
	// LineItems computes the charge lines from the application.
	LineItems func(app *models.Application) []models.LineItem
	// OnConfirmed is the parent state reached after confirmation.
	OnConfirmed string
	// PayerRole may submit, retry and continue.
	PayerRole template.Role
	// CallbackRole is the authenticated payment-callback identity that
	// may confirm or fail a submitted charge.
	CallbackRole template.Role
	// Lifecycle applies to PENDING, CHARGE_SUBMITTED and FAILED.
	// CONFIRMED is always durable. Zero value means time-boxed 30 days.
	Lifecycle template.LifecyclePolicy
}

func (f Fragment) prefix() string {
	if f.Prefix == "" {
		return "PAYMENT_"
	}
	return f.Prefix
}

// State names of the spliced fragment.
func (f Fragment) StatePending() string         { return f.prefix() + "PENDING" }
func (f Fragment) StateChargeSubmitted() string { return f.prefix() + "CHARGE_SUBMITTED" }
func (f Fragment) StateConfirmed() string       { return f.prefix() + "CONFIRMED" }
func (f Fragment) StateFailed() string          { return f.prefix() + "FAILED" }

// ProviderName is the registry name of the fragment's charge provider.
func (f Fragment) ProviderName() string {
	return strings.ToLower(strings.TrimSuffix(f.prefix(), "_")) + ".createCharge"
}

// DataKey is the externalData key the charge reference lands under.
func (f Fragment) DataKey() string {
	return strings.ToLower(strings.TrimSuffix(f.prefix(), "_")) + ".charge"
}

func (f Fragment) lifecycle() template.LifecyclePolicy {
	if f.Lifecycle.Kind == "" {
		return template.LifecyclePolicy{Kind: template.PolicyTimeBoxed, TTL: 30 * 24 * time.Hour}
	}
	return f.Lifecycle
}

// ChargeRefFrom extracts the stored charge reference, if any.
func (f Fragment) ChargeRefFrom(app *models.Application) (models.ChargeRef, bool) {
	entry, ok := app.ExternalData[f.DataKey()]
	if !ok || entry.Status != models.FetchSuccess {
		return models.ChargeRef{}, false
	}
	raw, ok := entry.Value.(map[string]interface{})
	if !ok {
		// Value set in-process rather than decoded from JSON.
		if ref, ok := entry.Value.(models.ChargeRef); ok {
			return ref, true
		}
		return models.ChargeRef{}, false
	}
	ref := models.ChargeRef{}
	if id, ok := raw["id"].(string); ok {
		ref.ID = id
	}
	if org, ok := raw["orgId"].(string); ok {
		ref.OrgID = org
	}
	return ref, ref.ID != ""
}

// LineItemsFromAnswers reads charge lines stored under an answers path
// as a list of {code, quantity, amount, currency} objects. Templates
// whose forms collect the chargeable items use this as the fragment's
// LineItems source.
func LineItemsFromAnswers(path string) func(app *models.Application) []models.LineItem {
	return func(app *models.Application) []models.LineItem {
		raw, ok := schema.GetPath(app.Answers, path)
		if !ok {
			return nil
		}
		list, ok := raw.([]interface{})
		if !ok {
			return nil
		}
		items := make([]models.LineItem, 0, len(list))
		for _, entry := range list {
			obj, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			item := models.LineItem{}
			if code, ok := obj["code"].(string); ok {
				item.Code = code
			}
			if qty, ok := obj["quantity"].(float64); ok {
				item.Quantity = int(qty)
			}
			if amount, ok := obj["amount"].(float64); ok {
				item.Amount = int64(amount)
			}
			if currency, ok := obj["currency"].(string); ok {
				item.Currency = currency
			}
			if item.Code != "" {
				items = append(items, item)
			}
		}
		return items
	}
}

// Provider returns the on-entry fetch that creates the charge when
// entering CHARGE_SUBMITTED. Retrying with an existing non-terminal
// charge returns the same reference instead of charging again.
func (f Fragment) Provider(charger Charger) providers.Provider {
	return func(ctx context.Context, app *models.Application) (interface{}, error) {
		if ref, ok := f.ChargeRefFrom(app); ok {
			status, err := charger.GetChargeStatus(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("failed to check existing charge %s: %w", ref.ID, err)
			}
			if !status.Terminal() {
				return ref, nil
			}
		}
		ref, err := charger.CreateCharge(ctx, f.OrgID, f.LineItems(app))
		if err != nil {
			return nil, fmt.Errorf("failed to create charge: %w", err)
		}
		return ref, nil
	}
}

// Splice adds the fragment's states to the template graph and registers
// its charge provider. The parent template routes into the fragment by
// targeting StatePending and receives control back at OnConfirmed.
func (f Fragment) Splice(tpl *template.Template, registry *providers.Registry, charger Charger) error {
	for _, name := range []string{f.StatePending(), f.StateChargeSubmitted(), f.StateConfirmed(), f.StateFailed()} {
		if _, exists := tpl.States[name]; exists {
			return fmt.Errorf("payment fragment state %q collides with template %q", name, tpl.TypeID)
		}
	}
	if err := registry.Register(f.ProviderName(), f.Provider(charger)); err != nil {
		return err
	}

	chargePresent := &template.Guard{
		Name: "chargeReferencePresent",
		Check: func(app *models.Application) bool {
			_, ok := f.ChargeRefFrom(app)
			return ok
		},
	}

	payerGrant := func(events ...template.Event) map[template.Role]template.RoleGrant {
		return map[template.Role]template.RoleGrant{
			f.PayerRole: {Events: events, Readable: template.FieldMask{"*"}},
		}
	}

	tpl.States[f.StatePending()] = template.State{
		Name:      f.StatePending(),
		Status:    template.StatusInProgress,
		Lifecycle: f.lifecycle(),
		Roles:     payerGrant(EventSubmit),
		Transitions: map[template.Event]template.Transition{
			EventSubmit: {Event: EventSubmit, Target: f.StateChargeSubmitted()},
		},
	}

	tpl.States[f.StateChargeSubmitted()] = template.State{
		Name:      f.StateChargeSubmitted(),
		Status:    template.StatusInProgress,
		Lifecycle: f.lifecycle(),
		Roles: map[template.Role]template.RoleGrant{
			f.PayerRole:    {Readable: template.FieldMask{"*"}},
			f.CallbackRole: {Events: []template.Event{EventConfirm, EventFail}},
		},
		OnEntry: []template.ProviderDecl{
			{Name: f.ProviderName(), Key: f.DataKey(), Required: true},
		},
		Transitions: map[template.Event]template.Transition{
			EventConfirm: {Event: EventConfirm, Target: f.StateConfirmed(), Guard: chargePresent},
			EventFail:    {Event: EventFail, Target: f.StateFailed()},
		},
	}

	tpl.States[f.StateConfirmed()] = template.State{
		Name:      f.StateConfirmed(),
		Status:    template.StatusInProgress,
		Lifecycle: template.LifecyclePolicy{Kind: template.PolicyDurable},
		Roles: map[template.Role]template.RoleGrant{
			f.PayerRole:    {Events: []template.Event{EventContinue}, Readable: template.FieldMask{"*"}},
			f.CallbackRole: {Events: []template.Event{EventConfirm}},
		},
		Transitions: map[template.Event]template.Transition{
			EventContinue: {Event: EventContinue, Target: f.OnConfirmed},
			// Re-delivered confirmation callbacks acknowledge without
			// committing a duplicate transition.
			EventConfirm: {Event: EventConfirm, Target: f.StateConfirmed(), NoOp: true},
		},
	}

	tpl.States[f.StateFailed()] = template.State{
		Name:      f.StateFailed(),
		Status:    template.StatusInProgress,
		Lifecycle: f.lifecycle(),
		Roles:     payerGrant(EventRetry),
		Transitions: map[template.Event]template.Transition{
			EventRetry: {Event: EventRetry, Target: f.StatePending()},
		},
	}

	return nil
}
