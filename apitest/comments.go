package apitest

import (
	"net/http"
	"sort"

	"github.com/Luismorlan/feedsync/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) listComments(c *gin.Context) {
	postId := c.Param("postId")

	s.mu.Lock()
	defer s.mu.Unlock()
	res := []*model.Comment{}
	for _, cm := range s.comments {
		if cm.PostId == postId {
			res = append(res, cm)
		}
	}
	// newest first, like the real service
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt > res[j].CreatedAt
		}
		return res[i].Id < res[j].Id
	})
	c.JSON(http.StatusOK, res)
}

func (s *Server) addComment(c *gin.Context) {
	var body struct {
		Content         string  `json:"content"`
		ParentCommentId *string `json:"parentCommentId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		abort(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[c.Param("postId")]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	cm := &model.Comment{
		Id:        uuid.New().String(),
		PostId:    post.Id,
		UserId:    sub(c),
		Content:   body.Content,
		Reactions: []model.Reaction{},
		Replies:   []string{},
		CreatedAt: s.tick(),
	}
	if body.ParentCommentId != nil && *body.ParentCommentId != "" {
		parent, ok := s.comments[*body.ParentCommentId]
		if !ok {
			abort(c, http.StatusNotFound, "Parent comment not found")
			return
		}
		parentId := parent.Id
		cm.ParentCommentId = &parentId
		parent.Replies = appendUnique(parent.Replies, cm.Id)
	}
	s.comments[cm.Id] = cm
	post.CommentCount++
	c.JSON(http.StatusCreated, cm)
}

func (s *Server) updateComment(c *gin.Context) {
	var body struct {
		Content *string  `json:"content"`
		Replies []string `json:"replies"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || (body.Content == nil && body.Replies == nil) {
		abort(c, http.StatusBadRequest, "Nothing to update")
		return
	}
	if body.Content != nil && *body.Content == "" {
		abort(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cm, ok := s.comments[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Comment not found")
		return
	}
	if body.Content != nil {
		if cm.UserId != sub(c) {
			abort(c, http.StatusForbidden, "Not allowed to edit this comment")
			return
		}
		cm.Content = *body.Content
	}
	if body.Replies != nil {
		cm.Replies = body.Replies
	}
	c.JSON(http.StatusOK, cm)
}

// deleteComment only removes the comment itself. Its parent's replies are
// updated by the client with a separate PUT, as the real service expects.
func (s *Server) deleteComment(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cm, ok := s.comments[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Comment not found")
		return
	}
	if cm.UserId != sub(c) && !s.isPrivileged(sub(c)) {
		abort(c, http.StatusForbidden, "Not allowed to delete this comment")
		return
	}
	delete(s.comments, cm.Id)
	if p, ok := s.posts[cm.PostId]; ok && p.CommentCount > 0 {
		p.CommentCount--
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

func (s *Server) reactComment(c *gin.Context) {
	var body struct {
		ImpressionType model.ReactionType `json:"impressionType"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !body.ImpressionType.Valid() {
		abort(c, http.StatusBadRequest, "Invalid reaction type")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cm, ok := s.comments[c.Param("id")]
	if !ok {
		abort(c, http.StatusNotFound, "Comment not found")
		return
	}
	cm.Reactions, _ = toggleReaction(cm.Reactions, nil, sub(c), body.ImpressionType)
	c.JSON(http.StatusOK, cm)
}
