package catalog

import "strings"

// Product is a read-only catalog entry.
type Product struct {
	ID          int64   `gorm:"column:id;primaryKey" json:"id"`
	Title       string  `gorm:"column:title;size:320;not null" json:"title"`
	Description string  `gorm:"column:description;type:text" json:"description"`
	Category    string  `gorm:"column:category;size:120;not null;index" json:"category"`
	Price       float64 `gorm:"column:price;not null" json:"price"`
	Rating      float64 `gorm:"column:rating;not null;default:0" json:"rating"`
	Retailer    string  `gorm:"column:retailer;size:190" json:"retailer"`
}

// TableName provides the explicit table binding for GORM.
func (Product) TableName() string {
	return "products"
}

// Page is one window of a filtered product listing.
type Page struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// MissingTitle is shown when a product cannot be resolved and no snapshot title exists.
const MissingTitle = "Product not found"

// Placeholder stands in for a product that could not be fetched.
func Placeholder(id int64, title string) Product {
	title = strings.TrimSpace(title)
	if title == "" {
		title = MissingTitle
	}
	return Product{ID: id, Title: title}
}
