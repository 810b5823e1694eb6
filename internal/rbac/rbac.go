package rbac

type Role string
type Action string

const (
	RoleAgencyOwner     Role = "AGENCY_OWNER"
	RoleAgencyAdmin     Role = "AGENCY_ADMIN"
	RoleSubaccountUser  Role = "SUBACCOUNT_USER"
	RoleSubaccountGuest Role = "SUBACCOUNT_GUEST"
)

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAgencyOwner:
		return true
	case RoleAgencyAdmin, RoleSubaccountUser:
		return action == ActionView || action == ActionEdit || action == ActionPublish
	case RoleSubaccountGuest:
		return action == ActionView
	default:
		return false
	}
}

// Normalize maps unknown roles to the least privileged one.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleAgencyOwner, RoleAgencyAdmin, RoleSubaccountUser, RoleSubaccountGuest:
		return Role(role)
	default:
		return RoleSubaccountGuest
	}
}
