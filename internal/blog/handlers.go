// Package blog is the demo application served by cmd/appctx: a static job
// listing plus users and their posts stored through the scope's "orm"
// resource.
package blog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/resources/ormdb"
	"github.com/rafbgarcia/appctx/router"
)

// Routes mounts the blog handlers on r.
func Routes(r *router.Router) {
	r.Get("/api/jobs", ListJobs)
	r.Get("/api/users", ListUsers)
	r.Post("/api/users", CreateUser)
	r.Get("/api/users/{id}", GetUser)
	r.Delete("/api/users/{id}", DeleteUser)
	r.Get("/api/users/{id}/posts", ListUserPosts)
	r.Post("/api/users/{id}/posts", CreatePost)
	r.Get("/api/posts/{id}", GetPost)
	r.Delete("/api/posts/{id}", DeletePost)
}

// ListJobs serves the static job listing.
func ListJobs(w http.ResponseWriter, ctx *appctx.Context) {
	writeJSON(w, ctx, http.StatusOK, Jobs)
}

// ListUsers serves every user ordered by id. ?order=desc reverses the order.
func ListUsers(w http.ResponseWriter, ctx *appctx.Context) {
	order := "id"
	switch ctx.Request.URL.Query().Get("order") {
	case "", "asc":
	case "desc":
		order = "id desc"
	default:
		http.Error(w, "order must be asc or desc", http.StatusBadRequest)
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	var users []User
	if err := db.Order(order).Find(&users).Error; err != nil {
		serverError(w, ctx, err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, users)
}

type createUserRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// CreateUser stores a user from a JSON body.
func CreateUser(w http.ResponseWriter, ctx *appctx.Context) {
	var req createUserRequest
	if err := json.NewDecoder(ctx.Request.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	user := User{Name: req.Name, Email: req.Email, Address: req.Address, Phone: req.Phone}
	if err := db.Create(&user).Error; err != nil {
		serverError(w, ctx, err)
		return
	}
	writeJSON(w, ctx, http.StatusCreated, user)
}

// GetUser serves one user with its posts.
func GetUser(w http.ResponseWriter, ctx *appctx.Context) {
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	user, ok := findUser(w, ctx, db.Preload("Posts", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}))
	if !ok {
		return
	}
	writeJSON(w, ctx, http.StatusOK, user)
}

// DeleteUser removes a user. The foreign key removes the user's posts too.
func DeleteUser(w http.ResponseWriter, ctx *appctx.Context) {
	id, ok := pathID(w, ctx)
	if !ok {
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	deleteByID(w, ctx, db, &User{}, id, "user not found")
}

// ListUserPosts serves the posts of the user named by the {id} path value.
func ListUserPosts(w http.ResponseWriter, ctx *appctx.Context) {
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	user, ok := findUser(w, ctx, db)
	if !ok {
		return
	}
	var posts []BlogPost
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&posts).Error; err != nil {
		serverError(w, ctx, err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, posts)
}

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreatePost stores a post for the user named by the {id} path value.
func CreatePost(w http.ResponseWriter, ctx *appctx.Context) {
	var req createPostRequest
	if err := json.NewDecoder(ctx.Request.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	user, ok := findUser(w, ctx, db)
	if !ok {
		return
	}
	post := BlogPost{
		Title:  req.Title,
		Body:   req.Body,
		Date:   time.Now().UTC().Truncate(24 * time.Hour),
		UserID: user.ID,
	}
	if err := db.Create(&post).Error; err != nil {
		serverError(w, ctx, err)
		return
	}
	writeJSON(w, ctx, http.StatusCreated, post)
}

// GetPost serves one post.
func GetPost(w http.ResponseWriter, ctx *appctx.Context) {
	id, ok := pathID(w, ctx)
	if !ok {
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	var post BlogPost
	err := db.First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, ctx, err)
		return
	}
	writeJSON(w, ctx, http.StatusOK, post)
}

// DeletePost removes one post.
func DeletePost(w http.ResponseWriter, ctx *appctx.Context) {
	id, ok := pathID(w, ctx)
	if !ok {
		return
	}
	db, ok := orm(w, ctx)
	if !ok {
		return
	}
	deleteByID(w, ctx, db, &BlogPost{}, id, "post not found")
}

func orm(w http.ResponseWriter, ctx *appctx.Context) (*gorm.DB, bool) {
	db, err := ormdb.DB(ctx.Request.Context(), ctx.Binder())
	if err != nil {
		serverError(w, ctx, err)
		return nil, false
	}
	return db, true
}

func pathID(w http.ResponseWriter, ctx *appctx.Context) (uint64, bool) {
	id, err := strconv.ParseUint(ctx.Request.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func findUser(w http.ResponseWriter, ctx *appctx.Context, db *gorm.DB) (User, bool) {
	id, ok := pathID(w, ctx)
	if !ok {
		return User{}, false
	}
	var user User
	err := db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return User{}, false
	}
	if err != nil {
		serverError(w, ctx, err)
		return User{}, false
	}
	return user, true
}

func deleteByID(w http.ResponseWriter, ctx *appctx.Context, db *gorm.DB, model any, id uint64, notFound string) {
	res := db.Delete(model, id)
	if res.Error != nil {
		serverError(w, ctx, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, notFound, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func serverError(w http.ResponseWriter, ctx *appctx.Context, err error) {
	ctx.Log.Error("request failed", "path", ctx.Request.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, ctx *appctx.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctx.Log.Error("write response failed", "path", ctx.Request.URL.Path, "error", err)
	}
}
