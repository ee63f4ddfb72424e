package accounts

import "time"

// User is a catalog user row.
type User struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:255;not null"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	Location  string `gorm:"size:255"`
	Photo     string `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// Member is a staff member row.
type Member struct {
	ID        string `gorm:"primaryKey;size:36"`
	FirstName string `gorm:"size:50;not null"`
	LastName  string `gorm:"size:50;not null"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"size:16;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Member) TableName() string { return "members" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&User{}, &Member{}}
}
