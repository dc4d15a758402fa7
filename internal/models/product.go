// internal/models/product.go
package models

import "time"

type ProductStatus string

const (
	StatusAvailable ProductStatus = "available"
	StatusSold      ProductStatus = "sold"
	StatusReserved  ProductStatus = "reserved"
)

// Valid reports whether s is one of the known statuses.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusReserved:
		return true
	}
	return false
}

// Categories is the default category list offered by the product form.
var Categories = []string{
	"Electrónica",
	"Ropa y Accesorios",
	"Hogar y Jardín",
	"Deportes",
	"Vehículos",
	"Muebles",
	"Juguetes",
	"Libros",
	"Arte y Manualidades",
	"Otros",
}

type Product struct {
	ID                  string        `json:"id"`
	BusinessID          string        `json:"businessId"`
	Name                string        `json:"name"`
	Price               float64       `json:"price"`
	Category            string        `json:"category"`
	Status              ProductStatus `json:"status"`
	Description         string        `json:"description"`
	Image               string        `json:"image"`
	PostedToMarketplace bool          `json:"postedToMarketplace"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

type ProductInput struct {
	BusinessID          string        `json:"businessId"`
	Name                string        `json:"name"`
	Price               float64       `json:"price"`
	Category            string        `json:"category"`
	Status              ProductStatus `json:"status"`
	Description         string        `json:"description"`
	Image               string        `json:"image"`
	PostedToMarketplace bool          `json:"postedToMarketplace"`
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	BusinessID          *string        `json:"businessId,omitempty"`
	Name                *string        `json:"name,omitempty"`
	Price               *float64       `json:"price,omitempty"`
	Category            *string        `json:"category,omitempty"`
	Status              *ProductStatus `json:"status,omitempty"`
	Description         *string        `json:"description,omitempty"`
	Image               *string        `json:"image,omitempty"`
	PostedToMarketplace *bool          `json:"postedToMarketplace,omitempty"`
}

func (p ProductPatch) Apply(pr Product) Product {
	if p.BusinessID != nil {
		pr.BusinessID = *p.BusinessID
	}
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Price != nil {
		pr.Price = *p.Price
	}
	if p.Category != nil {
		pr.Category = *p.Category
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
	if p.Description != nil {
		pr.Description = *p.Description
	}
	if p.Image != nil {
		pr.Image = *p.Image
	}
	if p.PostedToMarketplace != nil {
		pr.PostedToMarketplace = *p.PostedToMarketplace
	}
	return pr
}

func (p ProductPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.BusinessID != nil {
		cols["business_id"] = *p.BusinessID
	}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Image != nil {
		cols["image"] = *p.Image
	}
	if p.PostedToMarketplace != nil {
		cols["posted_to_marketplace"] = *p.PostedToMarketplace
	}
	return cols
}

func (p ProductPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}
