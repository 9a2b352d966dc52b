package store

import "encoding/json"

// User owns an ordered list of contract spaces. The password field is the
// bcrypt hash produced at registration; this package treats it as opaque.
type User struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	ContractSpaces []string `json:"contractSpace"`
}

// Term is one clause of a contract.
type Term struct {
	Clause      string `json:"clause"`
	Description string `json:"description"`
}

// Contract lifecycle statuses. Dates are opaque strings; no parsing or
// validation happens in this layer.
const (
	StatusActive  = "Active"
	StatusDraft   = "Draft"
	StatusExpired = "Expired"
	StatusUnknown = "Unknown"
)

// Contract is the normalized metadata extracted from one document.
// Unknown JSON fields survive a load/store cycle via Extra so the schema
// stays forward-compatible.
type Contract struct {
	ID             string   `json:"id"`
	SpaceID        string   `json:"space_id"`
	Title          string   `json:"title"`
	Parties        []string `json:"parties"`
	EffectiveDate  string   `json:"effective_date"`
	ExpirationDate string   `json:"expiration_date"`
	Terms          []Term   `json:"terms"`
	Status         string   `json:"status"`
	Platform       string   `json:"platform"`
	// RawResponse keeps the unparsed enrichment output when it could not be
	// decoded, so a degraded ingestion still surfaces something.
	RawResponse string `json:"raw_response,omitempty"`

	Extra map[string]any `json:"-"`
}

var contractKnownKeys = []string{
	"id", "space_id", "title", "parties", "effective_date",
	"expiration_date", "terms", "status", "platform", "raw_response",
}

func (c Contract) MarshalJSON() ([]byte, error) {
	type alias Contract
	return marshalWithExtra(alias(c), c.Extra)
}

func (c *Contract) UnmarshalJSON(data []byte) error {
	type alias Contract
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := extractUnknown(data, contractKnownKeys)
	if err != nil {
		return err
	}
	a.Extra = extra
	*c = Contract(a)
	return nil
}

// ContractSpace is a named grouping of contracts under one owning user.
type ContractSpace struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Contracts []string `json:"contracts"`

	Extra map[string]any `json:"-"`
}

var spaceKnownKeys = []string{"id", "name", "contracts"}

func (s ContractSpace) MarshalJSON() ([]byte, error) {
	type alias ContractSpace
	return marshalWithExtra(alias(s), s.Extra)
}

func (s *ContractSpace) UnmarshalJSON(data []byte) error {
	type alias ContractSpace
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := extractUnknown(data, spaceKnownKeys)
	if err != nil {
		return err
	}
	a.Extra = extra
	*s = ContractSpace(a)
	return nil
}

// marshalWithExtra merges the unknown-field bag back into the encoded
// document. Known fields win on key collision.
func marshalWithExtra(known any, extra map[string]any) ([]byte, error) {
	b, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func extractUnknown(data []byte, knownKeys []string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, k := range knownKeys {
		delete(m, k)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
