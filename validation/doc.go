// Package validation provides request parameter validation for the
// gateway's provider operations.
//
// Two styles are supported: a chainable Validator for hand-written
// checks on individual parameters, and struct tag validation backed by
// go-playground/validator for request structs.
//
//	v := validation.New().
//	    RequiredSymbol("symbol", req.Symbol).
//	    Range("days", req.Days, 1, 365)
//	if err := v.Validate(); err != nil {
//	    return err
//	}
//
// Both styles report failures as coded validation errors carrying
// per-field details.
package validation
