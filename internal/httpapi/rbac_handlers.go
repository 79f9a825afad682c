package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"animcentre.org/internal/audit"
	"animcentre.org/internal/auth"
	"animcentre.org/internal/ids"
	"animcentre.org/internal/stream"
)

type createUserRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	RoleIDs  []int64 `json:"role_ids"`
}

type updateUserRequest struct {
	Password *string  `json:"password"`
	Active   *bool    `json:"active"`
	RoleIDs  *[]int64 `json:"role_ids"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, requireAll, auth.PermAdminUsers) {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.CreateUser(r.Context(), auth.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		RoleIDs:  req.RoleIDs,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditAndPublish(r, "rbac.user.create", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%d", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

// handleUserResource routes /v1/users/{id} and /v1/users/{id}/assignments.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1:
		a.handleUserUpdate(w, r, userID)
	case len(parts) == 2 && parts[1] == "assignments":
		a.handleUserAssign(w, r, userID)
	case len(parts) == 3 && parts[1] == "assignments":
		roleID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleUserUnassign(w, r, userID, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	if !a.ensurePermissions(w, r, requireAll, auth.PermAdminUsers) {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.UpdateUser(r.Context(), userID, auth.UserUpdate{
		Password: req.Password,
		Active:   req.Active,
		RoleIDs:  req.RoleIDs,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	fields := map[string]any{"user_id": user.ID}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if req.Password != nil {
		fields["password_changed"] = true
	}
	a.auditAndPublish(r, "rbac.user.update", fields)
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserAssign(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, requireAll, auth.PermAdminUsers) {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoleID <= 0 {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	if err := a.auth.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditAndPublish(r, "rbac.user.assign_role", map[string]any{
		"user_id": userID,
		"role_id": req.RoleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserUnassign(w http.ResponseWriter, r *http.Request, userID, roleID int64) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, requireAll, auth.PermAdminUsers) {
		return
	}
	if err := a.auth.RemoveRole(r.Context(), userID, roleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditAndPublish(r, "rbac.user.remove_role", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, requireAny, auth.PermAdminRoles, auth.PermAdminUsers) {
			return
		}
		roles, err := a.auth.ListRoles(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, requireAll, auth.PermAdminRoles) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.auth.CreateRole(r.Context(), req.Name, req.DisplayName, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditAndPublish(r, "rbac.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%d", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRoleResource routes /v1/roles/{id}/permissions.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensurePermissions(w, r, requireAll, auth.PermAdminRoles) {
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditAndPublish(r, "rbac.role.permissions.update", map[string]any{
		"role_id": roleID,
		"count":   len(req.Permissions),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, requireAny, auth.PermAdminRoles, auth.PermAdminUsers) {
		return
	}
	perms, err := a.auth.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

// auditAndPublish records the admin action in the audit log and mirrors it
// onto the live event stream.
func (a *API) auditAndPublish(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
	actor := ""
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		actor = principal.User.Username
	}
	a.publish(stream.Event{
		ID:     ids.New(),
		Kind:   event,
		Actor:  actor,
		Fields: fields,
	})
}
