package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
	"bookshop/internal/repos"
	"bookshop/internal/storage"
	"bookshop/internal/validate"
)

const (
	lowStockThreshold = 5
	maxName           = 100
)

type CatalogService struct {
	Cats   *repos.CategoryRepo
	Books  *repos.BookRepo
	Covers storage.Store
}

func NewCatalogService(cats *repos.CategoryRepo, books *repos.BookRepo, covers storage.Store) *CatalogService {
	return &CatalogService{Cats: cats, Books: books, Covers: covers}
}

// ---------- categories ----------

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	c, err := s.Cats.Get(ctx, id)
	if errors.Is(err, repos.ErrCategoryNotFound) {
		return c, domain.NotFound("category not found")
	}
	return c, err
}

// CreateCategories creates every name or none.
func (s *CatalogService) CreateCategories(ctx context.Context, names []string) ([]domain.Category, error) {
	if len(names) == 0 {
		return nil, domain.Invalid("name", "this field is required")
	}
	clean := make([]string, len(names))
	seen := map[string]bool{}
	for i, n := range names {
		v, ok := validate.Name(n, maxName)
		if !ok {
			return nil, domain.Invalid("name", fmt.Sprintf("must be 1-%d characters", maxName))
		}
		if seen[strings.ToLower(v)] {
			return nil, domain.Invalid("name", "category with this name already exists")
		}
		seen[strings.ToLower(v)] = true
		clean[i] = v
	}
	out, err := s.Cats.CreateMany(ctx, clean)
	if errors.Is(err, repos.ErrCategoryExists) {
		return nil, domain.Invalid("name", "category with this name already exists")
	}
	return out, err
}

func (s *CatalogService) RenameCategory(ctx context.Context, id int64, name string) (domain.Category, error) {
	v, ok := validate.Name(name, maxName)
	if !ok {
		return domain.Category{}, domain.Invalid("name", fmt.Sprintf("must be 1-%d characters", maxName))
	}
	switch err := s.Cats.Rename(ctx, id, v); {
	case errors.Is(err, repos.ErrCategoryNotFound):
		return domain.Category{}, domain.NotFound("category not found")
	case errors.Is(err, repos.ErrCategoryExists):
		return domain.Category{}, domain.Invalid("name", "category with this name already exists")
	case err != nil:
		return domain.Category{}, err
	}
	return domain.Category{ID: id, Name: v}, nil
}

// DeleteCategory removes the category and every book in it.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	err := s.Cats.Delete(ctx, id)
	if errors.Is(err, repos.ErrCategoryNotFound) {
		return domain.NotFound("category not found")
	}
	return err
}

// ---------- books ----------

type BookQuery struct {
	Q          string
	CategoryID int64
	Author     string
	Language   string
	Format     string
	MinPrice   string
	MaxPrice   string
	MinRating  string
	Page       int
	PageSize   int
}

type BookPage struct {
	Count    int64         `json:"count"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Results  []domain.Book `json:"results"`
}

func parseDecimalParam(field, v string) (*decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return nil, domain.Invalid(field, "enter a number")
	}
	return &d, nil
}

func (s *CatalogService) ListBooks(ctx context.Context, q BookQuery) (BookPage, error) {
	f := repos.BookFilter{CategoryID: q.CategoryID}
	if strings.TrimSpace(q.Q) != "" {
		v, ok := validate.Q(q.Q)
		if !ok {
			return BookPage{}, domain.Invalid("q", "invalid search query")
		}
		f.Q = v
	}
	if a := strings.TrimSpace(q.Author); a != "" {
		f.Author = a
	}
	if l := strings.TrimSpace(q.Language); l != "" {
		f.Language = l
	}
	if q.Format != "" {
		if !domain.BookFormat(q.Format).Valid() {
			return BookPage{}, domain.Invalid("format", "must be Hardcover, Paperback or Ebook")
		}
		f.Format = domain.BookFormat(q.Format)
	}
	var err error
	if f.MinPrice, err = parseDecimalParam("min_price", q.MinPrice); err != nil {
		return BookPage{}, err
	}
	if f.MaxPrice, err = parseDecimalParam("max_price", q.MaxPrice); err != nil {
		return BookPage{}, err
	}
	if f.MinRating, err = parseDecimalParam("min_rating", q.MinRating); err != nil {
		return BookPage{}, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	f.Limit, f.Offset = size, (page-1)*size

	books, total, err := s.Books.List(ctx, f)
	if err != nil {
		return BookPage{}, err
	}
	return BookPage{Count: total, Page: page, PageSize: size, Results: books}, nil
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (domain.Book, error) {
	b, err := s.Books.Get(ctx, id)
	if errors.Is(err, repos.ErrBookNotFound) {
		return b, domain.NotFound("book not found")
	}
	return b, err
}

// BookInput is the writable shape of a book. Pointer fields are optional.
type BookInput struct {
	Title           *string          `json:"title" validate:"omitnil,notblank,max=200"`
	Author          *string          `json:"author" validate:"omitnil,notblank,max=100"`
	Price           *decimal.Decimal `json:"price"`
	ISBN            *string          `json:"isbn" validate:"omitnil,isbn_code"`
	Description     *string          `json:"description"`
	CategoryID      *int64           `json:"category"`
	Publisher       *string          `json:"publisher" validate:"omitnil,max=100"`
	PublicationDate *string          `json:"publication_date" validate:"omitnil,pubdate"`
	Language        *string          `json:"language" validate:"omitnil,notblank,max=50"`
	Pages           *int             `json:"pages" validate:"omitnil,min=0"`
	Stock           *int             `json:"stock" validate:"omitnil,min=0"`
	Rating          *decimal.Decimal `json:"rating"`
	Format          *string          `json:"format" validate:"omitnil,oneof=Hardcover Paperback Ebook"`
}

// changes validates the present fields and returns them keyed by column.
func (s *CatalogService) changes(ctx context.Context, in BookInput) (map[string]any, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	out := map[string]any{}
	for col, v := range map[string]*string{
		"title":    in.Title,
		"author":   in.Author,
		"isbn":     in.ISBN,
		"language": in.Language,
	} {
		if v != nil {
			out[col] = strings.TrimSpace(*v)
		}
	}
	if in.Price != nil {
		if in.Price.IsNegative() || !in.Price.Equal(in.Price.Round(2)) {
			return nil, domain.Invalid("price", "must be a non-negative amount with at most 2 decimal places")
		}
		out["price"] = in.Price.Round(2).StringFixed(2)
	}
	if in.Description != nil {
		out["description"] = strings.TrimSpace(*in.Description)
	}
	if in.CategoryID != nil {
		if _, err := s.Cats.Get(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repos.ErrCategoryNotFound) {
				return nil, domain.Invalid("category", fmt.Sprintf("invalid pk %d - object does not exist", *in.CategoryID))
			}
			return nil, err
		}
		out["category_id"] = *in.CategoryID
	}
	for col, v := range map[string]*string{
		"publisher":        in.Publisher,
		"publication_date": in.PublicationDate,
	} {
		if v == nil {
			continue
		}
		if t := strings.TrimSpace(*v); t == "" {
			out[col] = nil
		} else {
			out[col] = t
		}
	}
	if in.Pages != nil {
		out["pages"] = *in.Pages
	}
	if in.Stock != nil {
		out["stock"] = *in.Stock
	}
	if in.Rating != nil {
		if in.Rating.IsNegative() || in.Rating.GreaterThan(decimal.NewFromInt(5)) {
			return nil, domain.Invalid("rating", "must be between 0 and 5")
		}
		out["rating"] = in.Rating.Round(1).StringFixed(1)
	}
	if in.Format != nil {
		out["format"] = *in.Format
	}
	return out, nil
}

// CreateBooks validates and inserts all books or none.
func (s *CatalogService) CreateBooks(ctx context.Context, inputs []BookInput) ([]domain.Book, error) {
	if len(inputs) == 0 {
		return nil, domain.BadRequest("no books given")
	}
	books := make([]*domain.Book, 0, len(inputs))
	seen := map[string]bool{}
	for _, in := range inputs {
		for field, missing := range map[string]bool{
			"title": in.Title == nil, "author": in.Author == nil, "price": in.Price == nil,
			"isbn": in.ISBN == nil, "category": in.CategoryID == nil,
		} {
			if missing {
				return nil, domain.Invalid(field, "this field is required")
			}
		}
		ch, err := s.changes(ctx, in)
		if err != nil {
			return nil, err
		}
		b := bookFromChanges(ch)
		if seen[b.ISBN] {
			return nil, domain.Invalid("isbn", "book with this isbn already exists")
		}
		seen[b.ISBN] = true
		books = append(books, b)
	}

	err := s.Books.CreateMany(ctx, books)
	if errors.Is(err, repos.ErrISBNTaken) {
		return nil, domain.Invalid("isbn", "book with this isbn already exists")
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		full, err := s.Books.Get(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}

func bookFromChanges(ch map[string]any) *domain.Book {
	b := &domain.Book{Language: "English", Format: domain.FormatPaperback}
	str := func(k string) string {
		v, _ := ch[k].(string)
		return v
	}
	optStr := func(k string) *string {
		if v, ok := ch[k].(string); ok {
			return &v
		}
		return nil
	}
	b.Title, b.Author, b.ISBN, b.Description = str("title"), str("author"), str("isbn"), str("description")
	b.Price, _ = decimal.NewFromString(str("price"))
	b.CategoryID, _ = ch["category_id"].(int64)
	b.Publisher, b.PublicationDate = optStr("publisher"), optStr("publication_date")
	if v := str("language"); v != "" {
		b.Language = v
	}
	if v, ok := ch["pages"].(int); ok {
		b.Pages = &v
	}
	b.Stock, _ = ch["stock"].(int)
	if v := str("rating"); v != "" {
		d, _ := decimal.NewFromString(v)
		b.Rating = decimal.NewNullDecimal(d)
	}
	if v := str("format"); v != "" {
		b.Format = domain.BookFormat(v)
	}
	return b
}

// UpdateBook applies a partial update and returns the stored book.
func (s *CatalogService) UpdateBook(ctx context.Context, id int64, in BookInput) (domain.Book, error) {
	ch, err := s.changes(ctx, in)
	if err != nil {
		return domain.Book{}, err
	}
	switch err := s.Books.Update(ctx, id, ch); {
	case errors.Is(err, repos.ErrBookNotFound):
		return domain.Book{}, domain.NotFound("book not found")
	case errors.Is(err, repos.ErrISBNTaken):
		return domain.Book{}, domain.Invalid("isbn", "book with this isbn already exists")
	case err != nil:
		return domain.Book{}, err
	}
	return s.GetBook(ctx, id)
}

func (s *CatalogService) DeleteBook(ctx context.Context, id int64) error {
	err := s.Books.Delete(ctx, id)
	if errors.Is(err, repos.ErrBookNotFound) {
		return domain.NotFound("book not found")
	}
	return err
}

func AvailabilityFor(b domain.Book) domain.Availability {
	status := "IN_STOCK"
	switch {
	case b.Stock <= 0:
		status = "OUT_OF_STOCK"
	case b.Stock < lowStockThreshold:
		status = "LOW_STOCK"
	}
	return domain.Availability{BookID: b.ID, Status: status, Stock: b.Stock}
}

func (s *CatalogService) Availability(ctx context.Context, id int64) (domain.Availability, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	return AvailabilityFor(b), nil
}

// SetCover stores an uploaded image and its thumbnail and points the book at it.
func (s *CatalogService) SetCover(ctx context.Context, id int64, data []byte) (domain.Book, storage.Cover, error) {
	if _, err := s.GetBook(ctx, id); err != nil {
		return domain.Book{}, storage.Cover{}, err
	}
	base := fmt.Sprintf("book-%d-%s", id, uuid.NewString()[:8])
	cover, err := storage.SaveCover(ctx, s.Covers, base, data)
	if errors.Is(err, storage.ErrNotImage) {
		return domain.Book{}, storage.Cover{}, domain.Invalid("cover_image", "upload a valid image")
	}
	if err != nil {
		return domain.Book{}, storage.Cover{}, err
	}
	if err := s.Books.Update(ctx, id, map[string]any{"cover_image": cover.URL}); err != nil {
		return domain.Book{}, storage.Cover{}, err
	}
	b, err := s.GetBook(ctx, id)
	return b, cover, err
}
