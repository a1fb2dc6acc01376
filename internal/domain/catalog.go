package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type BookFormat string

const (
	FormatHardcover BookFormat = "Hardcover"
	FormatPaperback BookFormat = "Paperback"
	FormatEbook     BookFormat = "Ebook"
)

func (f BookFormat) Valid() bool {
	switch f {
	case FormatHardcover, FormatPaperback, FormatEbook:
		return true
	}
	return false
}

type Book struct {
	ID              int64               `db:"id" json:"id"`
	Title           string              `db:"title" json:"title"`
	Author          string              `db:"author" json:"author"`
	Price           decimal.Decimal     `db:"price" json:"price"`
	ISBN            string              `db:"isbn" json:"isbn"`
	Description     string              `db:"description" json:"description"`
	CoverImage      *string             `db:"cover_image" json:"cover_image"`
	CategoryID      int64               `db:"category_id" json:"category"`
	CategoryName    string              `db:"category_name" json:"category_name"`
	Publisher       *string             `db:"publisher" json:"publisher"`
	PublicationDate *string             `db:"publication_date" json:"publication_date"`
	Language        string              `db:"language" json:"language"`
	Pages           *int                `db:"pages" json:"pages"`
	Stock           int                 `db:"stock" json:"stock"`
	Rating          decimal.NullDecimal `db:"rating" json:"rating"`
	Format          BookFormat          `db:"format" json:"format"`
}

type Availability struct {
	BookID int64  `json:"book_id"`
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Stock  int    `json:"stock"`
}
