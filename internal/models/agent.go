package models

// Agent is a registered service provider. A record is live while it has
// an owner; RemoveAgent resets every field so the key can be
// re-registered by a new owner.
type Agent struct {
	Key          Address `json:"key"`
	Name         string  `json:"name"`
	MetadataURI  string  `json:"metadata_uri"`
	Owner        Address `json:"owner"`
	Reputation   int64   `json:"reputation"`
	TotalRatings int64   `json:"total_ratings"`
}

// Live reports whether the record currently belongs to an owner.
func (a *Agent) Live() bool { return a != nil && !a.Owner.IsZero() }

// Asset identifies the unit a price is denominated in: the native
// marketplace currency or a specific fungible token.
type Asset string

const AssetNative Asset = "native"

// Proposal is a priced offer by an agent against a registered service.
// Ids are allocated from a registry-wide sequence and never reused.
type Proposal struct {
	ID        int64   `json:"id"`
	AgentKey  Address `json:"agent_key"`
	ServiceID int64   `json:"service_id"`
	Price     int64   `json:"price"` // smallest currency unit
	Asset     Asset   `json:"asset"`
	Active    bool    `json:"active"`
}
