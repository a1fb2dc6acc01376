// Package catalogimport fills the catalog from Open Library subject listings.
package catalogimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bookshop/internal/domain"
	"bookshop/internal/repos"
	"bookshop/internal/storage"
)

// Subjects maps Open Library subjects to catalog category names.
var Subjects = []struct{ Subject, Category string }{
	{"fiction", "Fiction"},
	{"nonfiction", "Non-Fiction"},
	{"academic", "Academic"},
	{"science", "Science"},
	{"history", "History"},
	{"fantasy", "Fantasy"},
	{"biography", "Biography"},
	{"mystery", "Mystery"},
}

const (
	maxTitle     = 200
	maxAuthor    = 100
	maxCoverSize = 5 << 20
)

type Importer struct {
	Cats   *repos.CategoryRepo
	Books  *repos.BookRepo
	Covers storage.Store
	Log    *zap.Logger

	Client   *http.Client
	APIBase  string // https://openlibrary.org
	CoverURL string // https://covers.openlibrary.org
	Limit    int
	// Pace limits outbound requests; nil means unlimited.
	Pace *rate.Limiter
	Rand *rand.Rand
}

func New(cats *repos.CategoryRepo, books *repos.BookRepo, covers storage.Store, log *zap.Logger) *Importer {
	return &Importer{
		Cats:     cats,
		Books:    books,
		Covers:   covers,
		Log:      log,
		Client:   &http.Client{Timeout: 20 * time.Second},
		APIBase:  "https://openlibrary.org",
		CoverURL: "https://covers.openlibrary.org",
		Limit:    10,
		Pace:     rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		Rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

type Stats struct {
	Added   int
	Skipped int
	Failed  int
}

type work struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	CoverEditionKey  string          `json:"cover_edition_key"`
	Description      json.RawMessage `json:"description"`
	Publishers       []string        `json:"publishers"`
	FirstPublishYear int             `json:"first_publish_year"`
	Pages            int             `json:"number_of_pages_median"`
	Languages        []struct {
		Key string `json:"key"`
	} `json:"languages"`
}

// Run imports every subject. A failing subject is logged and skipped.
func (im *Importer) Run(ctx context.Context) (Stats, error) {
	var total Stats
	for _, s := range Subjects {
		st, err := im.importSubject(ctx, s.Subject, s.Category)
		total.Added += st.Added
		total.Skipped += st.Skipped
		total.Failed += st.Failed
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			im.Log.Warn("import.subject.fail", zap.String("subject", s.Subject), zap.Error(err))
			total.Failed++
		}
	}
	return total, nil
}

func (im *Importer) importSubject(ctx context.Context, subject, categoryName string) (Stats, error) {
	var st Stats
	cat, created, err := im.Cats.GetOrCreate(ctx, categoryName)
	if err != nil {
		return st, err
	}
	if created {
		im.Log.Info("import.category.created", zap.String("category", categoryName))
	}

	body, err := im.get(ctx, fmt.Sprintf("%s/subjects/%s.json?limit=%d", im.APIBase, subject, im.Limit), 0)
	if err != nil {
		return st, err
	}
	var listing struct {
		Works []work `json:"works"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return st, fmt.Errorf("decode %s listing: %w", subject, err)
	}

	for _, w := range listing.Works {
		key := w.CoverEditionKey
		if key == "" {
			im.Log.Info("import.book.skip", zap.String("title", w.Title), zap.String("reason", "no cover"))
			st.Skipped++
			continue
		}
		exists, err := im.Books.ExistsISBN(ctx, key)
		if err != nil {
			return st, err
		}
		if exists {
			st.Skipped++
			continue
		}
		img, err := im.get(ctx, fmt.Sprintf("%s/b/olid/%s-M.jpg", im.CoverURL, key), maxCoverSize)
		if err != nil {
			im.Log.Info("import.book.skip", zap.String("title", w.Title), zap.String("reason", "cover download failed"), zap.Error(err))
			st.Skipped++
			continue
		}
		cover, err := storage.SaveCover(ctx, im.Covers, key, img)
		if err != nil {
			im.Log.Info("import.book.skip", zap.String("title", w.Title), zap.String("reason", "cover not stored"), zap.Error(err))
			st.Skipped++
			continue
		}
		b := im.toBook(w, cat.ID)
		b.CoverImage = &cover.URL
		if err := im.Books.CreateMany(ctx, []*domain.Book{b}); err != nil {
			if errors.Is(err, repos.ErrISBNTaken) {
				st.Skipped++
				continue
			}
			return st, err
		}
		im.Log.Info("import.book.added", zap.String("title", b.Title), zap.String("isbn", b.ISBN))
		st.Added++
	}
	return st, nil
}

func (im *Importer) toBook(w work, categoryID int64) *domain.Book {
	names := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		names = append(names, a.Name)
	}
	b := &domain.Book{
		Title:       orDefault(truncate(w.Title, maxTitle), "No Title"),
		Author:      orDefault(truncate(strings.Join(names, ", "), maxAuthor), "Unknown"),
		ISBN:        w.CoverEditionKey,
		Description: orDefault(description(w.Description), "No description available"),
		CategoryID:  categoryID,
		Language:    "English",
		Format:      domain.FormatPaperback,
		Price:       decimal.NewFromInt(int64(100 + im.Rand.IntN(401))),
		Stock:       5 + im.Rand.IntN(16),
		Rating:      decimal.NewNullDecimal(decimal.NewFromFloat(3 + 2*im.Rand.Float64()).Round(1)),
	}
	publisher := "Unknown"
	if len(w.Publishers) > 0 && w.Publishers[0] != "" {
		publisher = truncate(w.Publishers[0], maxAuthor)
	}
	b.Publisher = &publisher
	if w.FirstPublishYear > 0 {
		d := fmt.Sprintf("%04d-01-01", w.FirstPublishYear)
		b.PublicationDate = &d
	}
	if w.Pages > 0 {
		p := w.Pages
		b.Pages = &p
	}
	if len(w.Languages) > 0 {
		code := w.Languages[0].Key[strings.LastIndex(w.Languages[0].Key, "/")+1:]
		if code != "" {
			b.Language = strings.ToUpper(code[:1]) + code[1:]
		}
	}
	return b
}

// description accepts both the plain string and the {"value": ...} form.
func description(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Value
	}
	return ""
}

func (im *Importer) get(ctx context.Context, url string, max int64) ([]byte, error) {
	if im.Pace != nil {
		if err := im.Pace.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := im.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	var r io.Reader = resp.Body
	if max > 0 {
		r = io.LimitReader(resp.Body, max)
	}
	return io.ReadAll(r)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
