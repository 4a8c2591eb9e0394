package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storyweave/backend/internal/database"
	"storyweave/backend/internal/models"
)

// region --- DTOs ---

// CreateCharacterInput defines the structure for creating a character.
type CreateCharacterInput struct {
	Name       string `json:"name" binding:"required,max=255" example:"Maren of the Shallows"`
	Physical   string `json:"physical" example:"tall\nscarred hands"`
	Mental     string `json:"mental" example:"patient\nsuspicious of strangers"`
	Skills     string `json:"skills" example:"navigation\nknife work"`
	Flaws      string `json:"flaws" example:"cannot swim"`
	Background string `json:"background" example:"Raised on the last dry island of the coast."`
	Beliefs    string `json:"beliefs" example:"The tide takes what it is owed."`
}

// CharacterResponse defines the structure for a character in API responses.
type CharacterResponse struct {
	ID         uint   `json:"id" example:"1"`
	OwnerID    uint   `json:"owner_id" example:"1"`
	Name       string `json:"name" example:"Maren of the Shallows"`
	Physical   string `json:"physical" example:"tall\nscarred hands"`
	Mental     string `json:"mental" example:"patient"`
	Skills     string `json:"skills" example:"navigation"`
	Flaws      string `json:"flaws" example:"cannot swim"`
	Background string `json:"background" example:"Raised on the last dry island."`
	Beliefs    string `json:"beliefs" example:"The tide takes what it is owed."`
}

func newCharacterResponse(ch models.Character) CharacterResponse {
	return CharacterResponse{
		ID:         ch.ID,
		OwnerID:    ch.OwnerID,
		Name:       ch.Name,
		Physical:   ch.Physical,
		Mental:     ch.Mental,
		Skills:     ch.Skills,
		Flaws:      ch.Flaws,
		Background: ch.Background,
		Beliefs:    ch.Beliefs,
	}
}

// endregion

// region --- Character Handlers ---

// CreateCharacter godoc
// @Summary      Create a character
// @Description  Creates a new character owned by the authenticated user.
// @Tags         characters
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateCharacterInput true "Character Info"
// @Success      201  {object}  CharacterResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /characters [post]
func CreateCharacter(c *gin.Context) {
	var input CreateCharacterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	character := models.Character{
		OwnerID:    userID.(uint),
		Name:       input.Name,
		Physical:   input.Physical,
		Mental:     input.Mental,
		Skills:     input.Skills,
		Flaws:      input.Flaws,
		Background: input.Background,
		Beliefs:    input.Beliefs,
	}
	if err := database.DB.Create(&character).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create character"})
		return
	}

	c.JSON(http.StatusCreated, newCharacterResponse(character))
}

// ListMyCharacters godoc
// @Summary      List own characters
// @Description  Lists the characters owned by the authenticated user.
// @Tags         characters
// @Produce      json
// @Security     BearerAuth
// @Param        page   query  int  false  "Page number"  default(1)
// @Param        limit  query  int  false  "Page size"    default(20)
// @Success      200  {object}  PaginatedResponse[CharacterResponse]
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /characters [get]
func ListMyCharacters(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	userID, _ := c.Get("userID")
	query := database.DB.Where("owner_id = ?", userID).Order("created_at DESC")

	paginated, err := Paginate[models.Character](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list characters"})
		return
	}

	responses := make([]CharacterResponse, len(paginated.Data))
	for i, ch := range paginated.Data {
		responses[i] = newCharacterResponse(ch)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(responses, paginated.Meta.TotalItems, page, limit))
}

// GetCharacter godoc
// @Summary      Get a character
// @Description  Gets a single character owned by the authenticated user.
// @Tags         characters
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Character ID"
// @Success      200  {object}  CharacterResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /characters/{id} [get]
func GetCharacter(c *gin.Context) {
	userID, _ := c.Get("userID")

	var character models.Character
	if err := database.DB.Where("owner_id = ?", userID).First(&character, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
		return
	}

	c.JSON(http.StatusOK, newCharacterResponse(character))
}

// endregion
