package model

import (
	"regexp"
	"strings"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// IsPrivileged is true for roles that publish through the admin endpoints.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

/*

User is the denormalized view of an account, referenced by id from posts and
comments and never owned by them.

Name: raw user name as stored by the server
Friends / Posts / SharedPosts / SavedPosts: the server sends full id lists,
		only their lengths are kept by the views

*/
type User struct {
	Id          string       `json:"centralUsrId"`
	Name        string       `json:"localUserName"`
	AvatarUrl   string       `json:"avatarUrl"`
	Role        Role         `json:"role"`
	Bio         string       `json:"bio"`
	Friends     []string     `json:"friends"`
	Posts       []string     `json:"posts"`
	SharedPosts []SharedItem `json:"sharedPosts"`
	SavedPosts  []string     `json:"savedPosts"`
}

type SharedItem struct {
	PostId string `json:"postId"`
}

// UnknownUser is shown when an author cannot be fetched.
func UnknownUser(id string) *User {
	return &User{Id: id, Name: "Unknown"}
}

func (u *User) EntityId() string { return u.Id }

func (u *User) Clone() Entity {
	var res User
	deepCopy(&res, u)
	return &res
}

func (u *User) DisplayName() string { return FormatUsername(u.Name) }
func (u *User) FriendCount() int    { return len(u.Friends) }
func (u *User) PostCount() int      { return len(u.Posts) }
func (u *User) SharedCount() int    { return len(u.SharedPosts) }
func (u *User) SavedCount() int     { return len(u.SavedPosts) }

var (
	wordStart      = regexp.MustCompile(`\b\w`)
	trailingDigits = regexp.MustCompile(`\d+$`)
)

// FormatUsername title-cases every word and strips the numeric suffix the
// server appends to generated names, e.g. "john doe42" becomes "John Doe".
func FormatUsername(name string) string {
	if name == "" {
		return ""
	}
	res := wordStart.ReplaceAllStringFunc(strings.ToLower(name), strings.ToUpper)
	return trailingDigits.ReplaceAllString(res, "")
}
