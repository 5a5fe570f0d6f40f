package auth

// Permission is a closed enumeration. Engines check permissions by
// equality against these constants; free-form permission strings are
// rejected at the store boundary.
type Permission string

const (
	PermGoalViewAll            Permission = "goals.view_all"
	PermGoalCreateYearly       Permission = "goals.create_yearly"
	PermGoalCreateQuarterly    Permission = "goals.create_quarterly"
	PermGoalCreateDepartmental Permission = "goals.create_departmental"
	PermGoalEdit               Permission = "goals.edit"
	PermGoalStatusChange       Permission = "goals.status_change"
	PermGoalProgressUpdate     Permission = "goals.progress_update"
	PermGoalApprove            Permission = "goals.approve"
	PermGoalFreeze             Permission = "goals.freeze"
	PermInitiativeCreate       Permission = "initiatives.create"
	PermInitiativeViewAll      Permission = "initiatives.view_all"
	PermReviewManage           Permission = "reviews.manage"
	PermReviewRespond          Permission = "reviews.respond"
	PermPerformanceViewAll     Permission = "performance.view_all"
	PermPerformanceEdit        Permission = "performance.edit"
	PermUsersManage            Permission = "users.manage"
	PermRolesManage            Permission = "roles.manage"
	PermSystemAdmin            Permission = "admin.system"
)

var AllPermissions = []Permission{
	PermGoalViewAll,
	PermGoalCreateYearly,
	PermGoalCreateQuarterly,
	PermGoalCreateDepartmental,
	PermGoalEdit,
	PermGoalStatusChange,
	PermGoalProgressUpdate,
	PermGoalApprove,
	PermGoalFreeze,
	PermInitiativeCreate,
	PermInitiativeViewAll,
	PermReviewManage,
	PermReviewRespond,
	PermPerformanceViewAll,
	PermPerformanceEdit,
	PermUsersManage,
	PermRolesManage,
	PermSystemAdmin,
}

func IsKnownPermission(p Permission) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

const (
	RoleStaff            = "staff"
	RoleSupervisor       = "supervisor"
	RoleDepartmentHead   = "department_head"
	RoleDirectorateHead  = "directorate_head"
	RoleExecutive        = "executive"
	RoleSystemAdminName  = "system_admin"
)

// DefaultRolePermissions seeds the built-in roles.
var DefaultRolePermissions = map[string][]Permission{
	RoleStaff: {
		PermGoalProgressUpdate,
		PermInitiativeCreate,
		PermReviewRespond,
	},
	RoleSupervisor: {
		PermGoalProgressUpdate,
		PermGoalApprove,
		PermInitiativeCreate,
		PermReviewRespond,
	},
	RoleDepartmentHead: {
		PermGoalCreateDepartmental,
		PermGoalProgressUpdate,
		PermGoalStatusChange,
		PermGoalApprove,
		PermGoalEdit,
		PermInitiativeCreate,
		PermInitiativeViewAll,
		PermReviewRespond,
		PermPerformanceViewAll,
	},
	RoleDirectorateHead: {
		PermGoalCreateDepartmental,
		PermGoalCreateQuarterly,
		PermGoalProgressUpdate,
		PermGoalStatusChange,
		PermGoalApprove,
		PermGoalEdit,
		PermGoalFreeze,
		PermInitiativeCreate,
		PermInitiativeViewAll,
		PermReviewManage,
		PermReviewRespond,
		PermPerformanceViewAll,
		PermPerformanceEdit,
	},
	RoleExecutive: {
		PermGoalViewAll,
		PermGoalCreateYearly,
		PermGoalCreateQuarterly,
		PermGoalCreateDepartmental,
		PermGoalEdit,
		PermGoalStatusChange,
		PermGoalProgressUpdate,
		PermGoalApprove,
		PermGoalFreeze,
		PermInitiativeCreate,
		PermInitiativeViewAll,
		PermReviewManage,
		PermReviewRespond,
		PermPerformanceViewAll,
		PermPerformanceEdit,
		PermUsersManage,
		PermRolesManage,
	},
	RoleSystemAdminName: {
		PermSystemAdmin,
	},
}
