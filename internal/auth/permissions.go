package auth

import "math"

// Permission bits. A user's Permissions field is the OR of the bits they
// hold. PermAny is a sentinel with every bit set (including the sign bit):
// passing it as the required mask matches every user, and it must never be
// assigned to an account.
const (
	PermAny int64 = -1

	// PermModifySelf allows changing one's own password.
	PermModifySelf int64 = 1 << 0

	// PermUserAdmin allows managing user accounts and their sessions.
	PermUserAdmin int64 = 1 << 1

	// PermSystemAdmin allows reading the audit trail and system settings.
	PermSystemAdmin int64 = 1 << 2

	// PermSetup allows initial configuration of the display system.
	PermSetup int64 = 1 << 3

	// PermOperation allows driving the live display state.
	PermOperation int64 = 1 << 4
)

// Satisfies reports whether a user holding userPerms may perform an
// operation gated on required.
//
// Semantics are any-of: the check passes when at least one required bit is
// held. The sign bit is implicitly granted to every user, which is what
// makes required == PermAny match unconditionally. Deliberately not all-of;
// callers wanting conjunction must check each bit separately.
func Satisfies(userPerms, required int64) bool {
	return required&(userPerms|math.MinInt64) != 0
}
