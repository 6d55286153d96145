package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Luismorlan/feedsync/model"
	"github.com/gin-gonic/gin"
)

func (s *Server) getUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[sub(c)]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) searchUsers(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "data": []*model.User{}, "message": "Search query is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := []*model.User{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Name), q) {
			res = append(res, u)
		}
	}
	sortUsers(res)
	if len(res) > limit {
		res = res[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res, "message": ""})
}

func (s *Server) updateName(c *gin.Context) {
	var body struct {
		UserName string `json:"userName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserName == "" {
		abort(c, http.StatusBadRequest, "User name is required")
		return
	}
	s.withMe(c, func(u *model.User) { u.Name = body.UserName })
}

func (s *Server) updateBio(c *gin.Context) {
	var body struct {
		NewBio string `json:"newBio"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "Invalid bio")
		return
	}
	s.withMe(c, func(u *model.User) { u.Bio = body.NewBio })
}

func (s *Server) withMe(c *gin.Context, edit func(u *model.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[sub(c)]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	edit(u)
	c.JSON(http.StatusOK, u)
}

func (s *Server) changeRole(c *gin.Context) {
	var body struct {
		IdToChange string     `json:"idToChange"`
		NewRole    model.Role `json:"newRole"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IdToChange == "" {
		abort(c, http.StatusBadRequest, "User id is required")
		return
	}
	switch body.NewRole {
	case model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin:
	default:
		abort(c, http.StatusBadRequest, "Invalid role")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isPrivileged(sub(c)) {
		abort(c, http.StatusForbidden, "Only admins can change roles")
		return
	}
	u, ok := s.users[body.IdToChange]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	u.Role = body.NewRole
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (s *Server) deleteUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isPrivileged(sub(c)) {
		abort(c, http.StatusForbidden, "Only admins can delete users")
		return
	}
	id := c.Param("id")
	if _, ok := s.users[id]; !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	for token, userId := range s.tokens {
		if userId == id {
			delete(s.tokens, token)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func sortUsers(users []*model.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Id < users[j].Id })
}
