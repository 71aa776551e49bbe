// Package shared holds the error taxonomy used across neotask.
//
// Packages wrap one of the sentinels with fmt.Errorf("...: %w") and adapters
// classify the result with KindOf:
//
//	switch shared.KindOf(err) {
//	case shared.KindValidation:
//	    return http.StatusBadRequest
//	case shared.KindConflict:
//	    return http.StatusConflict
//	default:
//	    return http.StatusInternalServerError
//	}
//
// Third-party errors are brought into the taxonomy with MarkKind, which keeps the
// original error reachable through errors.Is.
//
// Mapping kinds to transport codes is the job of the adapter layer, not of this
// package.
package shared
