package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"storyweave/backend/internal/auth"
	"storyweave/backend/internal/config"
	"storyweave/backend/internal/database"
	"storyweave/backend/internal/game"
	"storyweave/backend/internal/handler"
	"storyweave/backend/internal/hub"
	"storyweave/backend/internal/store"
	"storyweave/backend/internal/story"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	// Swagger imports
	_ "storyweave/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           StoryWeave API
// @version         1.0
// @description     This is the API for the StoryWeave collaborative storytelling service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	game.Default = game.New(
		store.NewGormStore(database.DB),
		hub.GlobalHub,
		story.NewTemplateWriter(),
		log.Logger,
	)

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Websocket routes authenticate via a token query parameter, as browsers
	// cannot set headers on an upgrade request.
	ws := router.Group("/ws")
	{
		ws.GET("/rooms/:id", handler.RoomSocket)
		ws.GET("/games/:id", handler.GameSocket)
	}

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
		}

		// World routes; listing and reading work anonymously, private worlds
		// stay hidden unless the caller owns them.
		worldRoutes := apiV1.Group("/worlds")
		{
			worldRoutes.GET("", auth.OptionalAuthMiddleware(), handler.ListWorlds)
			worldRoutes.GET("/:id", auth.OptionalAuthMiddleware(), handler.GetWorld)
			worldRoutes.POST("", auth.AuthMiddleware(), handler.CreateWorld)
		}

		// Character routes (protected)
		characterRoutes := apiV1.Group("/characters")
		characterRoutes.Use(auth.AuthMiddleware())
		{
			characterRoutes.POST("", handler.CreateCharacter)
			characterRoutes.GET("", handler.ListMyCharacters)
			characterRoutes.GET("/:id", handler.GetCharacter)
		}

		// Room routes (protected)
		roomRoutes := apiV1.Group("/rooms")
		roomRoutes.Use(auth.AuthMiddleware())
		{
			roomRoutes.POST("", handler.CreateRoom)
			roomRoutes.GET("", handler.ListRooms)
			roomRoutes.GET("/code/:code", handler.GetRoomByCode)
			roomRoutes.GET("/:id", handler.GetRoomByID)
			roomRoutes.POST("/:id/join", handler.JoinRoom)
			roomRoutes.POST("/:id/leave", handler.LeaveRoom)
			roomRoutes.POST("/:id/character", handler.SelectCharacter)
			roomRoutes.POST("/:id/ready", handler.ToggleReady)
			roomRoutes.POST("/:id/start", handler.StartRoom)
			roomRoutes.POST("/:id/messages", handler.PostRoomMessage)
			roomRoutes.GET("/:id/messages", handler.ListRoomMessages)
		}

		// Game routes (protected)
		gameRoutes := apiV1.Group("/games")
		gameRoutes.Use(auth.AuthMiddleware())
		{
			gameRoutes.GET("/:id", handler.GetGame)
			gameRoutes.GET("/:id/members", handler.ListGameMembers)
			gameRoutes.POST("/:id/continue", handler.MarkContinue)
			gameRoutes.POST("/:id/actions", handler.ProposeAction)
			gameRoutes.GET("/:id/actions", handler.ListActions)
			gameRoutes.POST("/:id/actions/:actionID/review", handler.ReviewAction)
			gameRoutes.POST("/:id/messages", handler.PostGameMessage)
			gameRoutes.GET("/:id/messages", handler.ListMessages)
			gameRoutes.GET("/:id/chapters", handler.ListChapters)
			gameRoutes.POST("/:id/leave", handler.LeaveGame)
			gameRoutes.POST("/:id/end", handler.EndGame)
			gameRoutes.POST("/:id/advance", handler.AdvanceGame)
			gameRoutes.PATCH("/:id/settings", handler.UpdateGameSettings)
			gameRoutes.GET("/:id/export", handler.ExportGame)
		}
	}

	fmt.Printf("Server is running on %s\n", config.AppConfig.ServerAddr)
	fmt.Printf("Swagger UI is available at http://localhost%s/swagger/index.html\n", config.AppConfig.ServerAddr)
	log.Fatal().Err(router.Run(config.AppConfig.ServerAddr)).Msg("server stopped")
}
