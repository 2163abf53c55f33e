package rbac

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleReviewer Role = "reviewer"
	RoleOwner    Role = "owner"
	RoleHOD      Role = "hod"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionAnnotate Action = "annotate"
	ActionUpload   Action = "upload"
	ActionWorkflow Action = "workflow"
	ActionAdmin    Action = "admin"
)

// Can answers coarse capability checks. Which workflow action a role may take
// from a given state is the workflow package's decision; this only gates
// whether the role participates in workflow at all.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleOwner:
		return action == ActionRead || action == ActionAnnotate || action == ActionUpload || action == ActionWorkflow
	case RoleReviewer, RoleHOD, RoleApprover:
		return action == ActionRead || action == ActionAnnotate || action == ActionWorkflow
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleReviewer, RoleOwner, RoleHOD, RoleApprover, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
