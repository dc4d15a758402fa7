// internal/models/business.go
package models

import "time"

// Business is a storefront owned by the signed-in user. Products hang off it by BusinessID.
type Business struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Logo        string    `json:"logo"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BusinessInput carries the user-editable fields of a new business.
type BusinessInput struct {
	Name        string `json:"name"`
	Logo        string `json:"logo"`
	Description string `json:"description"`
}

// BusinessPatch is a partial update; nil fields are left untouched.
type BusinessPatch struct {
	Name        *string `json:"name,omitempty"`
	Logo        *string `json:"logo,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Apply returns a copy of b with the patch merged in.
func (p BusinessPatch) Apply(b Business) Business {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Logo != nil {
		b.Logo = *p.Logo
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	return b
}

// Columns maps the patch onto table columns for an UPDATE.
func (p BusinessPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Logo != nil {
		cols["logo"] = *p.Logo
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	return cols
}

// IsEmpty reports whether the patch changes nothing.
func (p BusinessPatch) IsEmpty() bool {
	return p.Name == nil && p.Logo == nil && p.Description == nil
}
