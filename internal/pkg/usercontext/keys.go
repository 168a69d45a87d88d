package usercontext

// Locals and header keys shared by middlewares and controllers
const (
	LocalsKey    = "USER_CONTEXT"
	KeyUserID    = "user_id"
	KeyIsAdmin   = "isAdmin"
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
	RoleAdmin    = "admin"
)
