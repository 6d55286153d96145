package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/Luismorlan/feedsync/apitest"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/utils/dotenv"
	Logger "github.com/Luismorlan/feedsync/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var port = flag.Int("port", 8080, "port the mock api listens on")

// seed loads a small dataset, amira logs in with token "dev-token".
func seed(s *apitest.Server) {
	s.AddUser(&model.User{Id: "u1", Name: "amira", Role: model.RoleUser, Bio: "city walks"}, "dev-token")
	s.AddUser(&model.User{Id: "u2", Name: "bilal42", Role: model.RoleUser}, "dev-token-2")
	s.AddUser(&model.User{Id: "a1", Name: "admin", Role: model.RoleSuperAdmin}, "dev-admin-token")

	for i := 1; i <= 25; i++ {
		author := "u2"
		if i%5 == 0 {
			author = "a1"
		}
		s.AddPost(&model.Post{
			Id:         fmt.Sprintf("post-%02d", i),
			Author:     author,
			Caption:    fmt.Sprintf("post number %d", i),
			Tags:       []string{"daily"},
			Visibility: model.VisibilityPublic,
		})
	}
	s.AddPost(&model.Post{
		Id:         "post-shared",
		Author:     "u1",
		Caption:    "look at this",
		Visibility: model.VisibilityPublic,
		IsShared:   true,
		SharedFrom: &model.OriginalRef{OriginalAuthor: "u2", OriginalCaption: "post number 1"},
	})

	root := "c-1"
	s.AddComment(&model.Comment{Id: "c-1", PostId: "post-25", UserId: "u2", Content: "nice"})
	s.AddComment(&model.Comment{Id: "c-2", PostId: "post-25", UserId: "u1", Content: "agreed", ParentCommentId: &root})
}

func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	Logger.InitLogger()

	fake := apitest.NewServer()
	seed(fake)

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsConfig))
	router.Any("/api/*path", gin.WrapH(fake.Handler()))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	Logger.Log.Infof("mock api starts up on :%d", *port)
	if err := router.Run(fmt.Sprintf(":%d", *port)); err != nil {
		Logger.Log.Fatal(err)
	}
}
