package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storyweave/backend/internal/database"
	"storyweave/backend/internal/models"
)

// region --- DTOs ---

// CreateWorldInput defines the structure for creating a world.
type CreateWorldInput struct {
	Title      string `json:"title" binding:"required,max=255" example:"The Drowned Coast"`
	Summary    string `json:"summary" example:"A kingdom slowly sinking beneath the tide."`
	Context    string `json:"context" example:"Two centuries after the Great Flood..."`
	Logic      string `json:"logic" example:"Magic is drawn from salt water."`
	TimePeriod string `json:"time_period" example:"late medieval"`
	Setting    string `json:"setting" example:"coastal kingdom"`
	IsPublic   bool   `json:"is_public" example:"true"`
}

// WorldResponse defines the structure for a world in API responses.
type WorldResponse struct {
	ID         uint   `json:"id" example:"1"`
	CreatorID  uint   `json:"creator_id" example:"1"`
	Title      string `json:"title" example:"The Drowned Coast"`
	Summary    string `json:"summary" example:"A kingdom slowly sinking beneath the tide."`
	Context    string `json:"context" example:"Two centuries after the Great Flood..."`
	Logic      string `json:"logic" example:"Magic is drawn from salt water."`
	TimePeriod string `json:"time_period" example:"late medieval"`
	Setting    string `json:"setting" example:"coastal kingdom"`
	IsPublic   bool   `json:"is_public" example:"true"`
	UsageCount int    `json:"usage_count" example:"12"`
}

func newWorldResponse(w models.World) WorldResponse {
	return WorldResponse{
		ID:         w.ID,
		CreatorID:  w.CreatorID,
		Title:      w.Title,
		Summary:    w.Summary,
		Context:    w.Context,
		Logic:      w.Logic,
		TimePeriod: w.TimePeriod,
		Setting:    w.Setting,
		IsPublic:   w.IsPublic,
		UsageCount: w.UsageCount,
	}
}

// endregion

// region --- World Handlers ---

// CreateWorld godoc
// @Summary      Create a world
// @Description  Creates a new story world owned by the authenticated user.
// @Tags         worlds
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateWorldInput true "World Info"
// @Success      201  {object}  WorldResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /worlds [post]
func CreateWorld(c *gin.Context) {
	var input CreateWorldInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	world := models.World{
		CreatorID:  userID.(uint),
		Title:      input.Title,
		Summary:    input.Summary,
		Context:    input.Context,
		Logic:      input.Logic,
		TimePeriod: input.TimePeriod,
		Setting:    input.Setting,
		IsPublic:   input.IsPublic,
	}
	if err := database.DB.Create(&world).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create world"})
		return
	}

	c.JSON(http.StatusCreated, newWorldResponse(world))
}

// ListWorlds godoc
// @Summary      List worlds
// @Description  Lists public worlds. An authenticated caller also sees their own private worlds.
// @Tags         worlds
// @Produce      json
// @Param        page   query  int  false  "Page number"  default(1)
// @Param        limit  query  int  false  "Page size"    default(20)
// @Success      200  {object}  PaginatedResponse[WorldResponse]
// @Failure      500  {object}  ErrorResponse
// @Router       /worlds [get]
func ListWorlds(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := database.DB.Order("usage_count DESC, created_at DESC")
	if userID, exists := c.Get("userID"); exists {
		query = query.Where("is_public = ? OR creator_id = ?", true, userID)
	} else {
		query = query.Where("is_public = ?", true)
	}

	paginated, err := Paginate[models.World](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list worlds"})
		return
	}

	responses := make([]WorldResponse, len(paginated.Data))
	for i, w := range paginated.Data {
		responses[i] = newWorldResponse(w)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(responses, paginated.Meta.TotalItems, page, limit))
}

// GetWorld godoc
// @Summary      Get a world
// @Description  Gets a single world. Private worlds are visible only to their creator.
// @Tags         worlds
// @Produce      json
// @Param        id  path  int  true  "World ID"
// @Success      200  {object}  WorldResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /worlds/{id} [get]
func GetWorld(c *gin.Context) {
	var world models.World
	if err := database.DB.First(&world, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "World not found"})
		return
	}

	if !world.IsPublic {
		userID, exists := c.Get("userID")
		if !exists || userID.(uint) != world.CreatorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "World is private"})
			return
		}
	}

	c.JSON(http.StatusOK, newWorldResponse(world))
}

// endregion
