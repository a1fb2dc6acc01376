package domain

type User struct {
	ID        int64  `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Hash      string `db:"password_hash" json:"-"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
	IsStaff   bool   `db:"is_staff" json:"is_staff"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}
