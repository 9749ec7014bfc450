package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Checkout is what a provider needs to open a payment session.
type Checkout struct {
	Reference string
	Amount    int64
	TicketIDs []int64
	BuyerID   int64
}

type Session struct {
	Provider    string
	Reference   string
	ExternalID  string
	ApprovalURL string
}

type Outcome struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// Provider is a payment gateway.
type Provider interface {
	Name() string
	Create(ctx context.Context, checkout Checkout) (Session, error)
	Confirm(ctx context.Context, session Session, token string) (Outcome, error)
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeclineToken makes the offline provider reject a confirmation.
const DeclineToken = "declined"

// Offline approves every confirmation except DeclineToken. Its approval URL
// sends the payer straight back to the storefront. It stands in for
// the real gateways in development and tests.
type Offline struct {
	name    string
	baseURL string
}

func NewOffline(name, baseURL string) *Offline {
	return &Offline{name: name, baseURL: strings.TrimRight(baseURL, "/")}
}

func (o *Offline) Name() string {
	return o.name
}

func (o *Offline) Create(_ context.Context, checkout Checkout) (Session, error) {
	if checkout.Amount <= 0 {
		return Session{}, fmt.Errorf("amount must be positive")
	}
	q := url.Values{}
	q.Set("reference", checkout.Reference)
	q.Set("provider", o.name)

	return Session{
		Provider:    o.name,
		Reference:   checkout.Reference,
		ExternalID:  o.name + "-" + uuid.NewString(),
		ApprovalURL: o.baseURL + "/checkout/return?" + q.Encode(),
	}, nil
}

func (o *Offline) Confirm(_ context.Context, session Session, token string) (Outcome, error) {
	if token == DeclineToken {
		return Outcome{Approved: false, Reason: "declined by payer"}, nil
	}
	txID := session.ExternalID
	if txID == "" {
		txID = o.name + "-" + uuid.NewString()
	}
	return Outcome{Approved: true, TransactionID: txID}, nil
}
