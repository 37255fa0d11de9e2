package types

// LaunchResult is the closed result enumeration returned to launch
// callers. Callers must treat unknown codes as failure.
type LaunchResult string

const (
	ResultSuccess           LaunchResult = "success"
	ResultTaskToFront       LaunchResult = "task-to-front"
	ResultDeliveredToTop    LaunchResult = "delivered-to-top"
	ResultCancelled         LaunchResult = "cancelled"
	ResultPermissionDenied  LaunchResult = "permission-denied"
	ResultClassNotFound     LaunchResult = "class-not-found"
	ResultLockTaskViolation LaunchResult = "lock-task-violation"

	ResultNoCompatibleContainer LaunchResult = "no-compatible-container"
	ResultRestoreFailed         LaunchResult = "restore-failed"
	ResultTaskIDExhausted       LaunchResult = "task-id-exhausted"
)

// OK reports whether the launch reached or reused a work item.
func (r LaunchResult) OK() bool {
	switch r {
	case ResultSuccess, ResultTaskToFront, ResultDeliveredToTop:
		return true
	}
	return false
}

// Restriction is the policy checker's verdict on an operation.
type Restriction string

const (
	RestrictionNone       Restriction = "none"
	RestrictionPermission Restriction = "permission"
	RestrictionAppOp      Restriction = "app-op"
)
