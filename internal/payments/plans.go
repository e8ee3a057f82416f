// Package payments holds the fixed-price filing plans and their hosted
// checkout links. The portal never talks to the payment processor directly;
// its whole contract is plan name to redirect URL.
package payments

import (
	"github.com/shopspring/decimal"
)

type Plan struct {
	Slug        string
	Name        string
	Price       decimal.Decimal
	CheckoutURL string
}

type Catalog struct {
	plans  []Plan
	bySlug map[string]Plan
}

// NewCatalog builds the plan list from the pre-provisioned checkout links.
func NewCatalog(individualURL, businessURL, familyURL string) *Catalog {
	plans := []Plan{
		{Slug: "individual", Name: "Individual", Price: decimal.NewFromInt(199), CheckoutURL: individualURL},
		{Slug: "family", Name: "Family", Price: decimal.NewFromInt(299), CheckoutURL: familyURL},
		{Slug: "business", Name: "Business", Price: decimal.NewFromInt(449), CheckoutURL: businessURL},
	}

	bySlug := make(map[string]Plan, len(plans))
	for _, p := range plans {
		bySlug[p.Slug] = p
	}
	return &Catalog{plans: plans, bySlug: bySlug}
}

func (c *Catalog) Plans() []Plan {
	return c.plans
}

func (c *Catalog) Lookup(slug string) (Plan, bool) {
	p, ok := c.bySlug[slug]
	return p, ok
}
