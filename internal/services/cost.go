package services

// Cost is the normalized descriptor every provider adapter returns alongside
// its payload. Amounts are computed from configured unit prices before the
// call is made, so a missing price mapping fails pre-flight rather than after
// money was spent.
type Cost struct {
	Resource  string
	Provider  string
	Model     string
	Units     float64
	AmountUSD float64
	Metadata  map[string]string
}

// Pricer resolves the unit price for a (provider, model, resource) triple.
// Implementations return ErrConfiguration-wrapped errors when no mapping
// exists.
type Pricer interface {
	UnitPrice(provider, model, resource string) (float64, error)
}
