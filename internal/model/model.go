// Package model defines domain entities shared by services, the local store and the gateway.
package model

import "time"

// LocalUserID is the owner reference stamped on todos created before login.
const LocalUserID = "local-user"

// MaxTitleLen is the upper bound on todo titles after validation.
const MaxTitleLen = 10000

// Todo is a single task. Status references a StatusConfig id owned by
// AppSettings; a todo must never be left pointing at a deleted status.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      string     `json:"userId"`
}

// CreateTodo is the client change intent for creating a todo.
type CreateTodo struct {
	Title       string     `json:"title" validate:"required,max=10000"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// UpdateTodo carries a partial update; nil fields are left untouched.
type UpdateTodo struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=10000"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
}

// BulkAction enumerates operations applied to a set of todo ids in one pass.
type BulkAction string

const (
	BulkDelete       BulkAction = "delete"
	BulkComplete     BulkAction = "complete"
	BulkIncomplete   BulkAction = "incomplete"
	BulkChangeStatus BulkAction = "changeStatus"
)

// BulkRequest is the payload of POST /todos/bulk-action.
type BulkRequest struct {
	TodoIDs   []string   `json:"todoIds"`
	Action    BulkAction `json:"action"`
	NewStatus string     `json:"newStatus,omitempty"`
}

// BulkResult reports how many of the requested ids were present and affected.
type BulkResult struct {
	Affected int `json:"affected"`
}

// TodoQuery selects a page of todos. Search matches title/description
// case-insensitively; Status filters by exact status id.
type TodoQuery struct {
	Page   int
	Limit  int
	Search string
	Status string
}

// TodoPage is one page of results with pagination totals.
type TodoPage struct {
	Todos      []Todo `json:"todos"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

// StatusConfig is a kanban column: a named colored bucket todos belong to.
// Order is the display position; locally the array position is authoritative.
type StatusConfig struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// AppSettings is the per-user settings object. At least one status must
// always exist; the status set is owned exclusively by the settings service.
type AppSettings struct {
	Statuses        []StatusConfig `json:"statuses"`
	DefaultView     string         `json:"defaultView"`
	ShowCompleted   bool           `json:"showCompleted"`
	NotificationsOn bool           `json:"notificationsOn"`
}

// UpdateSettings carries a partial settings update; nil fields are untouched.
type UpdateSettings struct {
	Statuses        *[]StatusConfig `json:"statuses,omitempty"`
	DefaultView     *string         `json:"defaultView,omitempty"`
	ShowCompleted   *bool           `json:"showCompleted,omitempty"`
	NotificationsOn *bool           `json:"notificationsOn,omitempty"`
}

// DefaultSettings returns the settings a fresh local profile starts with.
func DefaultSettings() AppSettings {
	return AppSettings{
		Statuses: []StatusConfig{
			{ID: "todo", Label: "To Do", Color: "#6b7280", Order: 0},
			{ID: "in-progress", Label: "In Progress", Color: "#3b82f6", Order: 1},
			{ID: "done", Label: "Done", Color: "#22c55e", Order: 2},
		},
		DefaultView:   "kanban",
		ShowCompleted: true,
	}
}

// Subscription plans and states as reported by the billing backend.
const (
	PlanFree    = "free"
	PlanPremium = "premium"

	SubActive    = "active"
	SubInactive  = "inactive"
	SubCancelled = "cancelled"
	SubPastDue   = "past_due"
)

// Subscription is the billing state for the current user. It is derived
// server state, never owned locally.
type Subscription struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// StatusLimits pairs the authoritative status-column count with the plan
// limit. Count must track the number of StatusConfig entries in settings.
type StatusLimits struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	CanCreate bool   `json:"canCreate"`
	Message   string `json:"message,omitempty"`
}

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"` // access token expiry (for diagnostics)
}

// User represents the authenticated account profile.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credentials is a login/register request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
