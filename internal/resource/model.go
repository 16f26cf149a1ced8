package resource

import "time"

// Resource is a directory entry pointing veterans at a support service.
type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Phone       string    `json:"phone,omitempty"`
	CategoryID  string    `json:"category_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ResourceInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Phone       string `json:"phone"`
	CategoryID  string `json:"category_id"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// SavedResource links an account to a bookmarked resource.
type SavedResource struct {
	ResourceID string    `json:"resource_id"`
	SavedAt    time.Time `json:"saved_at"`
	Resource   Resource  `json:"resource"`
}
