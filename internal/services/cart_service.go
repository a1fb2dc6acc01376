package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
	"bookshop/internal/repos"
	"bookshop/internal/validate"
)

type CartService struct {
	Carts *repos.CartRepo
	Books *repos.BookRepo
}

func NewCartService(carts *repos.CartRepo, books *repos.BookRepo) *CartService {
	return &CartService{Carts: carts, Books: books}
}

// View returns the user's cart priced at current book prices.
func (s *CartService) View(ctx context.Context, userID int64) (domain.Cart, error) {
	cartID, err := s.Carts.EnsureCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.load(ctx, cartID, userID)
}

func (s *CartService) load(ctx context.Context, cartID, userID int64) (domain.Cart, error) {
	lines, err := s.Carts.Lines(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	uid := userID
	cart := domain.Cart{ID: cartID, UserID: &uid, Items: make([]domain.CartItem, 0, len(lines)), TotalPrice: decimal.Zero}
	for _, l := range lines {
		sub := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		cart.Items = append(cart.Items, domain.CartItem{ID: l.ItemID, Book: l.Book, Quantity: l.Quantity, Subtotal: sub})
		cart.TotalPrice = cart.TotalPrice.Add(sub)
	}
	return cart, nil
}

// AddItem adds qty copies of a book, merging with an existing line for that book.
func (s *CartService) AddItem(ctx context.Context, userID, bookID int64, qty int) (domain.Cart, error) {
	if !validate.Qty(qty) {
		return domain.Cart{}, domain.Invalid("quantity", "ensure this value is between 1 and 999")
	}
	if _, err := s.Books.Get(ctx, bookID); err != nil {
		if errors.Is(err, repos.ErrBookNotFound) {
			return domain.Cart{}, domain.Invalid("book_id", "invalid pk - object does not exist")
		}
		return domain.Cart{}, err
	}
	cartID, err := s.Carts.EnsureCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.Carts.UpsertItem(ctx, cartID, bookID, qty); err != nil {
		return domain.Cart{}, err
	}
	return s.load(ctx, cartID, userID)
}

// UpdateItem changes a line's quantity. A nil quantity leaves it as is.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, qty *int) (domain.Cart, error) {
	cartID, err := s.Carts.EnsureCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if qty == nil {
		ok, err := s.Carts.HasItem(ctx, cartID, itemID)
		if err != nil {
			return domain.Cart{}, err
		}
		if !ok {
			return domain.Cart{}, domain.NotFound("item not found in cart")
		}
		return s.load(ctx, cartID, userID)
	}
	if !validate.Qty(*qty) {
		return domain.Cart{}, domain.Invalid("quantity", "ensure this value is between 1 and 999")
	}
	if err := s.Carts.SetQuantity(ctx, cartID, itemID, *qty); err != nil {
		if errors.Is(err, repos.ErrCartItemNotFound) {
			return domain.Cart{}, domain.NotFound("item not found in cart")
		}
		return domain.Cart{}, err
	}
	return s.load(ctx, cartID, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) (domain.Cart, error) {
	cartID, err := s.Carts.EnsureCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.Carts.DeleteItem(ctx, cartID, itemID); err != nil {
		if errors.Is(err, repos.ErrCartItemNotFound) {
			return domain.Cart{}, domain.NotFound("item not found in cart")
		}
		return domain.Cart{}, err
	}
	return s.load(ctx, cartID, userID)
}
