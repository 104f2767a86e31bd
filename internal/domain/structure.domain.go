package domain

import (
	"time"
)

// NodeKind tags the two node types that share one sibling ordering
// namespace under a parent module.
type NodeKind string

const (
	KindModule  NodeKind = "module"
	KindFeature NodeKind = "feature"
)

// MoveDirection for sibling reordering.
type MoveDirection string

const (
	MoveUp   MoveDirection = "UP"
	MoveDown MoveDirection = "DOWN"
)

// Feature priorities / statuses.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

type Module struct {
	ID                 string     `json:"id"`
	ProjectID          string     `json:"project_id"`
	ParentModuleID     *string    `json:"parent_module_id,omitempty"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	IsRoot             bool       `json:"is_root"`
	SortOrder          int        `json:"sort_order"`
	PublishedVersionID *string    `json:"published_version_id,omitempty"`
	CreatedBy          string     `json:"created_by"`
	LastModifiedBy     *string    `json:"last_modified_by,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
	DeletedBy          *string    `json:"deleted_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (m *Module) IsDeleted() bool { return m.DeletedAt != nil }

type Feature struct {
	ID                 string     `json:"id"`
	ModuleID           string     `json:"module_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Priority           string     `json:"priority"`
	Status             string     `json:"status"`
	SortOrder          int        `json:"sort_order"`
	PublishedVersionID *string    `json:"published_version_id,omitempty"`
	CreatedBy          string     `json:"created_by"`
	LastModifiedBy     *string    `json:"last_modified_by,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
	DeletedBy          *string    `json:"deleted_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (f *Feature) IsDeleted() bool { return f.DeletedAt != nil }

// Pin fixes one child of a module version to the version number that was
// published when the snapshot was taken.
type Pin struct {
	ChildID       string `json:"child_id"`
	VersionNumber int    `json:"version_number"`
}

type ModuleVersion struct {
	ID            string    `json:"id"`
	ModuleID      string    `json:"module_id"`
	VersionNumber int       `json:"version_number"`
	ContentHash   string    `json:"content_hash"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ChildrenPins  []Pin     `json:"children_pins"`
	FeaturePins   []Pin     `json:"feature_pins"`
	Changelog     string    `json:"changelog,omitempty"`
	IsRollback    bool      `json:"is_rollback"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type FeatureVersion struct {
	ID            string    `json:"id"`
	FeatureID     string    `json:"feature_id"`
	VersionNumber int       `json:"version_number"`
	ContentHash   string    `json:"content_hash"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	Changelog     string    `json:"changelog,omitempty"`
	IsRollback    bool      `json:"is_rollback"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Scope identifies one sibling ordering namespace: the direct children of
// ParentModuleID, or the root modules of the project when it is nil.
type Scope struct {
	ProjectID      string
	ParentModuleID *string
}

// SiblingRef is the tagged union consumed by ordering and tree assembly so
// that modules and features compare through one code path.
type SiblingRef struct {
	Kind      NodeKind
	ID        string
	SortOrder int
	Name      string
	CreatedAt time.Time
}

// TreeNode is one merged entry of the assembled structure tree.
type TreeNode struct {
	Kind          NodeKind   `json:"kind"`
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	Status        string     `json:"status,omitempty"`
	SortOrder     int        `json:"sort_order"`
	DisplayOrder  int        `json:"display_order"`
	Published     bool       `json:"published"`
	VersionNumber int        `json:"version_number,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Children      []*TreeNode `json:"children,omitempty"`
}

// ---- requests ----

type CreateModuleRequest struct {
	ProjectID      string  `json:"project_id"`
	ParentModuleID *string `json:"parent_module_id,omitempty"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
}

type UpdateModuleRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ParentModuleID *string `json:"parent_module_id,omitempty"`
	// MoveToRoot reparents to the project root scope; ParentModuleID is
	// ignored when set.
	MoveToRoot bool `json:"move_to_root,omitempty"`
}

type CreateFeatureRequest struct {
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
}

type UpdateFeatureRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type DeleteOptions struct {
	Cascade bool
	Force   bool
}
