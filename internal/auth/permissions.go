package auth

// Permission names gated on by the wider administration product.
const (
	PermAdminUsers      = "admin.users"
	PermAdminRoles      = "admin.roles"
	PermChildrenView    = "children.view"
	PermChildrenManage  = "children.manage"
	PermAnimatorsView   = "animators.view"
	PermAnimatorsManage = "animators.manage"
	PermCalendarView    = "calendar.view"
	PermCalendarManage  = "calendar.manage"
	PermDocumentsView   = "documents.view"
	PermDocumentsManage = "documents.manage"
)

// BuiltinPermissions is the catalog ensured to exist at startup.
var BuiltinPermissions = []Permission{
	{Name: PermAdminUsers, Category: "administration", Description: "Manage user accounts"},
	{Name: PermAdminRoles, Category: "administration", Description: "Manage roles and their permissions"},
	{Name: PermChildrenView, Category: "children", Description: "View child records"},
	{Name: PermChildrenManage, Category: "children", Description: "Create and edit child records"},
	{Name: PermAnimatorsView, Category: "animators", Description: "View animator records"},
	{Name: PermAnimatorsManage, Category: "animators", Description: "Create and edit animator records"},
	{Name: PermCalendarView, Category: "calendar", Description: "View the activity calendar"},
	{Name: PermCalendarManage, Category: "calendar", Description: "Edit the activity calendar"},
	{Name: PermDocumentsView, Category: "documents", Description: "View documents"},
	{Name: PermDocumentsManage, Category: "documents", Description: "Upload and edit documents"},
}
