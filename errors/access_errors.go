package errors

import "errors"

var (
	ErrPermissionNotFound    = errors.New("permission not found")
	ErrPermissionConflict    = errors.New("permission conflict")
	ErrInvalidPermissionData = errors.New("invalid permission data")

	ErrRoleNotFound    = errors.New("role not found")
	ErrRoleConflict    = errors.New("role conflict")
	ErrInvalidRoleData = errors.New("invalid role data")

	ErrNoMatchingPermission   = errors.New("no permission for resource")
	ErrInsufficientTier       = errors.New("insufficient tier")
	ErrContextConditionFailed = errors.New("context conditions not met")
	ErrTrustAttestationFailed = errors.New("trust attestation failed")

	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")
	ErrSystemError    = errors.New("access control system error")
)
