// Package recipient defines the recipient record contract and validates raw
// tabular rows against it.
//
// A raw row is an open mapping from normalized column name to trimmed cell
// value. Validate turns it into either a closed, immutable Record or a
// FieldErrors value listing every reason the row was rejected:
//
//	rec, err := recipient.Validate(recipient.RawRow{
//		"email":      "jane@example.com",
//		"first_name": "Jane",
//		"opt_out":    "no",
//	})
//	if err != nil {
//		var fe recipient.FieldErrors
//		if errors.As(err, &fe) {
//			for _, e := range fe {
//				fmt.Println(e.Field, e.Code)
//			}
//		}
//	}
//
// # Schema
//
//   - email: required, bare addr-spec (missing_email, invalid_email)
//   - first_name, last_name: optional, empty means absent
//   - opt_out: optional boolean, defaults to false (invalid_opt_out)
//
// Columns outside the schema are ignored.
package recipient
