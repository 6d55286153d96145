package apitest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.Use(s.record(), s.JWT())

	posts := api.Group("/posts")
	posts.GET("", s.listPosts)
	posts.POST("", s.createPost(false))
	posts.POST("/admin", s.createPost(true))
	posts.GET("/user/:id", s.listUserPosts)
	posts.GET("/:id", s.getPost)
	posts.DELETE("/:id", s.deletePost)
	posts.PUT("/:id/caption", s.updateCaption)
	posts.PUT("/:id/availability", s.updateAvailability)
	posts.POST("/:id/tags", s.addTag)
	posts.PUT("/:id/tags", s.renameTag)
	posts.DELETE("/:id/tags", s.removeTag)
	posts.POST("/:id/shares", s.share)
	posts.DELETE("/:id/shares", s.unshare)
	posts.POST("/:id/saves", s.toggleSave)
	posts.POST("/:id/reactions", s.react)

	comments := api.Group("/comments")
	comments.GET("/post/:postId", s.listComments)
	comments.POST("/post/:postId", s.addComment)
	comments.PUT("/:id", s.updateComment)
	comments.DELETE("/:id", s.deleteComment)
	comments.POST("/:id/reactions", s.reactComment)

	users := api.Group("/users")
	users.GET("/search", s.searchUsers)
	users.GET("/me", s.me)
	users.PUT("/me", s.updateName)
	users.PUT("/me/bio", s.updateBio)
	users.POST("/changeRole", s.changeRole)
	users.GET("/:id", s.getUser)
	users.DELETE("/:id", s.deleteUser)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "API not found"})
	})
	return router
}
