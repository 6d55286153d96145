package apitest

import (
	"io"
	"net/http"
	"strconv"

	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	return page, limit
}

func paginate(posts []*model.Post, page, limit int) []*model.Post {
	start := (page - 1) * limit
	if start >= len(posts) {
		return []*model.Post{}
	}
	end := start + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}

// must hold s.mu
func (s *Server) isPrivileged(userId string) bool {
	u, ok := s.users[userId]
	return ok && u.Role.IsPrivileged()
}

func (s *Server) listPosts(c *gin.Context) {
	page, limit := pageParams(c)
	scope := c.Query("scope")

	s.mu.Lock()
	defer s.mu.Unlock()
	posts := s.sortedPosts(func(p *model.Post) bool {
		switch scope {
		case "admin":
			return s.isPrivileged(p.Author)
		case "user":
			return !s.isPrivileged(p.Author)
		}
		return true
	})
	c.JSON(http.StatusOK, gin.H{"data": paginate(posts, page, limit)})
}

func (s *Server) listUserPosts(c *gin.Context) {
	page, limit := pageParams(c)
	userId := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	posts := s.sortedPosts(func(p *model.Post) bool { return p.Author == userId })
	if len(posts) == 0 {
		abort(c, http.StatusNotFound, "No posts found for this user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": paginate(posts, page, limit)})
}

func (s *Server) getPost(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

func (s *Server) createPost(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		caption := c.PostForm("postCaption")
		tag := c.PostForm("tag")
		media := []model.Media{}
		if form, err := c.MultipartForm(); err == nil {
			for _, fh := range form.File["media"] {
				f, err := fh.Open()
				if err != nil {
					abort(c, http.StatusBadRequest, "Cannot read media")
					return
				}
				_, _ = io.Copy(io.Discard, f)
				f.Close()
				media = append(media, model.Media{Url: "/uploads/" + fh.Filename})
			}
		}
		if caption == "" && len(media) == 0 {
			abort(c, http.StatusBadRequest, "Post must have a caption or media")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		author := sub(c)
		if admin && !s.isPrivileged(author) {
			abort(c, http.StatusForbidden, "Only admins can publish here")
			return
		}
		p := &model.Post{
			Id:             uuid.New().String(),
			Author:         author,
			Caption:        caption,
			Media:          media,
			Tags:           []string{},
			Visibility:     model.VisibilityPublic,
			ReactionCounts: model.ReactionCounts{},
			Reactions:      []model.Reaction{},
			ShareList:      []string{},
			SaveList:       []string{},
			CreatedAt:      s.tick(),
		}
		if tag != "" {
			p.Tags = append(p.Tags, tag)
		}
		s.posts[p.Id] = p
		if u, ok := s.users[author]; ok {
			u.Posts = append(u.Posts, p.Id)
		}
		c.JSON(http.StatusCreated, gin.H{"post": p})
	}
}

// withOwnPost runs edit on the post if the caller may change it.
func (s *Server) withOwnPost(c *gin.Context, edit func(p *model.Post) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	if p.Author != sub(c) && !s.isPrivileged(sub(c)) {
		abort(c, http.StatusForbidden, "Not allowed to edit this post")
		return
	}
	if edit(p) {
		c.JSON(http.StatusOK, gin.H{"post": p})
	}
}

func (s *Server) withPost(c *gin.Context, edit func(p *model.Post) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	if edit(p) {
		c.JSON(http.StatusOK, gin.H{"post": p})
	}
}

func (s *Server) deletePost(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	if p.Author != sub(c) && !s.isPrivileged(sub(c)) {
		abort(c, http.StatusForbidden, "Not allowed to delete this post")
		return
	}
	delete(s.posts, p.Id)
	for id, cm := range s.comments {
		if cm.PostId == p.Id {
			delete(s.comments, id)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (s *Server) updateCaption(c *gin.Context) {
	var body struct {
		NewCaption string `json:"newCaption"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.NewCaption == "" {
		abort(c, http.StatusBadRequest, "Caption is required")
		return
	}
	s.withOwnPost(c, func(p *model.Post) bool {
		p.Caption = body.NewCaption
		return true
	})
}

func (s *Server) updateAvailability(c *gin.Context) {
	var body struct {
		NewAvailability model.Visibility `json:"newAvailability"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !body.NewAvailability.Valid() {
		abort(c, http.StatusBadRequest, "Invalid availability")
		return
	}
	s.withOwnPost(c, func(p *model.Post) bool {
		p.Visibility = body.NewAvailability
		return true
	})
}

func (s *Server) addTag(c *gin.Context) {
	var body struct {
		NewTag string `json:"newTag"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.NewTag == "" {
		abort(c, http.StatusBadRequest, "Tag is required")
		return
	}
	s.withOwnPost(c, func(p *model.Post) bool {
		for _, t := range p.Tags {
			if t == body.NewTag {
				abort(c, http.StatusBadRequest, "Tag already exists")
				return false
			}
		}
		p.Tags = append(p.Tags, body.NewTag)
		return true
	})
}

func (s *Server) renameTag(c *gin.Context) {
	var body struct {
		OldTag string `json:"oldTag"`
		NewTag string `json:"newTag"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.OldTag == "" || body.NewTag == "" {
		abort(c, http.StatusBadRequest, "Both tags are required")
		return
	}
	s.withOwnPost(c, func(p *model.Post) bool {
		for i, t := range p.Tags {
			if t == body.OldTag {
				p.Tags[i] = body.NewTag
				return true
			}
		}
		abort(c, http.StatusNotFound, "Tag not found")
		return false
	})
}

func (s *Server) removeTag(c *gin.Context) {
	var body struct {
		TagToDelete string `json:"tagToDelete"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.TagToDelete == "" {
		abort(c, http.StatusBadRequest, "Tag is required")
		return
	}
	s.withOwnPost(c, func(p *model.Post) bool {
		p.Tags = without(p.Tags, body.TagToDelete)
		return true
	})
}

func (s *Server) share(c *gin.Context) {
	s.withPost(c, func(p *model.Post) bool {
		p.ShareList = appendUnique(p.ShareList, sub(c))
		p.ShareCount = len(p.ShareList)
		if u, ok := s.users[sub(c)]; ok {
			u.SharedPosts = append(u.SharedPosts, model.SharedItem{PostId: p.Id})
		}
		c.JSON(http.StatusOK, gin.H{"post": gin.H{"shareList": p.ShareList, "shareCount": p.ShareCount}})
		return false
	})
}

func (s *Server) unshare(c *gin.Context) {
	s.withPost(c, func(p *model.Post) bool {
		p.ShareList = without(p.ShareList, sub(c))
		p.ShareCount = len(p.ShareList)
		if u, ok := s.users[sub(c)]; ok {
			shared := []model.SharedItem{}
			for _, item := range u.SharedPosts {
				if item.PostId != p.Id {
					shared = append(shared, item)
				}
			}
			u.SharedPosts = shared
		}
		c.JSON(http.StatusOK, gin.H{"post": gin.H{"shareList": p.ShareList, "shareCount": p.ShareCount}})
		return false
	})
}

func (s *Server) toggleSave(c *gin.Context) {
	s.withPost(c, func(p *model.Post) bool {
		if utils.ContainsString(p.SaveList, sub(c)) {
			p.SaveList = without(p.SaveList, sub(c))
		} else {
			p.SaveList = append(p.SaveList, sub(c))
		}
		c.JSON(http.StatusOK, gin.H{"post": gin.H{"saveList": p.SaveList}})
		return false
	})
}

func (s *Server) react(c *gin.Context) {
	var body struct {
		ReactionType model.ReactionType `json:"reactionType"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !body.ReactionType.Valid() {
		abort(c, http.StatusBadRequest, "Invalid reaction type")
		return
	}
	s.withPost(c, func(p *model.Post) bool {
		p.Reactions, p.ReactionCounts = toggleReaction(p.Reactions, p.ReactionCounts, sub(c), body.ReactionType)
		return true
	})
}

// toggleReaction adds, switches or removes userId's reaction.
func toggleReaction(reactions []model.Reaction, counts model.ReactionCounts, userId string, t model.ReactionType) ([]model.Reaction, model.ReactionCounts) {
	if counts == nil {
		counts = model.ReactionCounts{}
	}
	res := []model.Reaction{}
	var previous model.ReactionType
	for _, r := range reactions {
		if r.UserId == userId {
			previous = r.Type
			continue
		}
		res = append(res, r)
	}
	if previous != "" {
		counts[previous]--
		if counts[previous] <= 0 {
			delete(counts, previous)
		}
	}
	if previous != t {
		res = append(res, model.Reaction{UserId: userId, Type: t})
		counts[t]++
	}
	return res, counts
}
