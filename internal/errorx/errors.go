package errorx

import "errors"

// Sentinel errors for the authorization and ledger core. Authorization
// failures are normal control-flow outcomes resolved at the guard boundary;
// handlers map them to HTTP statuses.
var (
	// ErrInvalidCredentials is deliberately unspecific: an unknown email, a
	// wrong password and an inactive account all produce this same error.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized means no session or an invalid one.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden means a session is present but its role is insufficient.
	ErrForbidden = errors.New("insufficient permissions")

	ErrNotFound          = errors.New("record not found")
	ErrWasteTypeNotFound = errors.New("waste type not found")

	// ErrInvalidWeight rejects zero and negative deposit weights before any
	// ledger write happens.
	ErrInvalidWeight = errors.New("deposit weight must be positive")

	// ErrQuotaExceeded names the violated constraint; unlike credential
	// errors it is specific and actionable.
	ErrQuotaExceeded  = errors.New("RT unit household quota exceeded")
	ErrDuplicateWarga = errors.New("nomor KK already registered in this RT unit")

	// ErrLedgerInconsistency marks a stored balance that diverges from the
	// sum of its deposit rows.
	ErrLedgerInconsistency = errors.New("balance does not match deposit history")
)
