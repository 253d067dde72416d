package recipient

import "encoding/json"

// Schema field names.
const (
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldOptOut    = "opt_out"
)

// RawRow maps normalized column names to trimmed cell values.
type RawRow map[string]string

// Record is a validated recipient. The zero value is not a valid record;
// records are only produced by Validate.
type Record struct {
	firstName *string
	lastName  *string
	email     string
	optOut    bool

	// name columns present in the source row, even when empty
	hasFirstName bool
	hasLastName  bool
}

// Email returns the recipient address.
func (r Record) Email() string { return r.email }

// FirstName returns the first name and whether it was present.
func (r Record) FirstName() (string, bool) { return deref(r.firstName) }

// LastName returns the last name and whether it was present.
func (r Record) LastName() (string, bool) { return deref(r.lastName) }

// OptOut reports whether the recipient opted out.
func (r Record) OptOut() bool { return r.optOut }

// Fields returns a fresh binding map for template rendering.
// A name column present in the source binds its value, or "" when the cell
// is empty. Columns missing from the source are omitted so that templates
// referencing them fail the required-variable check.
func (r Record) Fields() map[string]any {
	fields := map[string]any{
		FieldEmail:  r.email,
		FieldOptOut: r.optOut,
	}
	if r.firstName != nil || r.hasFirstName {
		fields[FieldFirstName], _ = r.FirstName()
	}
	if r.lastName != nil || r.hasLastName {
		fields[FieldLastName], _ = r.LastName()
	}
	return fields
}

// MarshalJSON encodes absent names as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     string  `json:"email"`
		OptOut    bool    `json:"opt_out"`
	}{
		Email:     r.email,
		FirstName: r.firstName,
		LastName:  r.lastName,
		OptOut:    r.optOut,
	})
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
