// Package errors provides structured error handling with error codes.
//
// Every error that crosses a package boundary in this module is an *Error
// carrying an ErrorCode. The code decides the HTTP status written by Render,
// so handlers never pick status codes themselves.
//
// The 2FA core uses four error classes:
//
//	errors.Validation("method", "unsupported")          // 400, malformed input
//	errors.Authentication(errors.ErrCode2FAInvalid, "") // 401, generic message
//	errors.Transport(err, "Failed to send verification code")
//	errors.State("2FA was not enabled for this method") // 400
//
// Lower layers wrap with fmt.Errorf("...: %w", err); the service layer turns
// those into coded errors and handlers call Render:
//
//	if err != nil {
//	    errors.Render(w, r, err)
//	    return
//	}
package errors
