package blog

import "time"

// User is an author of blog posts.
type User struct {
	ID      uint       `gorm:"primaryKey" json:"id"`
	Name    string     `gorm:"size:50" json:"name"`
	Email   string     `gorm:"size:50" json:"email"`
	Address string     `gorm:"size:200" json:"address"`
	Phone   string     `gorm:"size:50" json:"phone"`
	Posts   []BlogPost `gorm:"constraint:OnDelete:CASCADE" json:"posts,omitempty"`
}

func (User) TableName() string { return "user" }

// BlogPost belongs to exactly one User.
type BlogPost struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Title  string    `gorm:"size:50" json:"title"`
	Body   string    `gorm:"size:200" json:"body"`
	Date   time.Time `gorm:"type:date" json:"date"`
	UserID uint      `gorm:"not null" json:"user_id"`
}

func (BlogPost) TableName() string { return "blog_post" }

// Models lists the tables the "orm" resource creates.
func Models() []any {
	return []any{&User{}, &BlogPost{}}
}

// Job is an entry of the static job listing.
type Job struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Salary  string `json:"salary"`
}

// Jobs is the static listing served by /api/jobs. Ids are not unique.
var Jobs = []Job{
	{ID: 2, Name: "Data analyst", Address: "Bengaluru,India", Salary: "10,00,000"},
	{ID: 2, Name: "Data scientist", Address: "Delhi,India", Salary: "1,00,000"},
	{ID: 3, Name: "Backend Engineer", Address: "San Diego, California", Salary: "10,00,000"},
}
