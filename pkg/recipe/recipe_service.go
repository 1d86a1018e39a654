package recipe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/utils/storage"
	"foodgram-backend/pkg/catalog"
	"foodgram-backend/pkg/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, recipeID string, userID string) (domain.RecipeResponse, error)
		CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID string, userID string, role string) error

		FavoriteRecipe(ctx context.Context, recipeID, userID string) (domain.RecipeMinifiedResponse, error)
		UnfavoriteRecipe(ctx context.Context, recipeID, userID string) error
		AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.RecipeMinifiedResponse, error)
		RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error
		DownloadShoppingList(ctx context.Context, userID string) (string, error)
	}

	recipeService struct {
		recipeRepository  RecipeRepository
		catalogRepository catalog.CatalogRepository
		userRepository    user.UserRepository
		s3                storage.AwsS3
	}
)

func NewRecipeService(
	recipeRepository RecipeRepository,
	catalogRepository catalog.CatalogRepository,
	userRepository user.UserRepository,
	s3 storage.AwsS3,
) RecipeService {
	return &recipeService{
		recipeRepository:  recipeRepository,
		catalogRepository: catalogRepository,
		userRepository:    userRepository,
		s3:                s3,
	}
}

func (s *recipeService) GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string) ([]domain.RecipeResponse, int64, error) {
	// The favorited and cart filters are scoped to the caller; without one
	// there is nothing to match against.
	if userID == "" {
		filter.IsFavorited = nil
		filter.IsInShoppingCart = nil
	}

	recipes, count, err := s.recipeRepository.GetRecipes(ctx, filter, userID)
	if err != nil {
		return nil, 0, err
	}

	res, err := s.buildRecipeResponses(ctx, recipes, userID)
	if err != nil {
		return nil, 0, err
	}
	return res, count, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID string, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	res, err := s.buildRecipeResponses(ctx, []*entities.Recipe{recipe}, userID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	return res[0], nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	if err := validateRecipePayload(req.Tags, req.Ingredients, req.CookingTime); err != nil {
		return domain.RecipeResponse{}, err
	}

	tags, items, err := s.resolveAssociations(ctx, req.Tags, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	authorUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	imageURL, err := s.uploadImage(ctx, req.Image)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorUUID,
		Name:        req.Name,
		ImageURL:    imageURL,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Tags:        tags,
	}
	for _, item := range items {
		item.RecipeID = recipe.ID
	}

	if err := s.recipeRepository.CreateRecipe(ctx, recipe, items); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.rereadRecipe(ctx, recipe.ID.String(), userID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	if recipe.AuthorID.String() != userID {
		return domain.RecipeResponse{}, domain.ErrNotRecipeAuthor
	}

	if err := validateRecipePayload(req.Tags, req.Ingredients, req.CookingTime); err != nil {
		return domain.RecipeResponse{}, err
	}

	tags, items, err := s.resolveAssociations(ctx, req.Tags, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	for _, item := range items {
		item.RecipeID = recipe.ID
	}

	if req.Image != "" {
		imageURL, err := s.uploadImage(ctx, req.Image)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		recipe.ImageURL = imageURL
	}

	recipe.Name = req.Name
	recipe.Text = req.Text
	recipe.CookingTime = req.CookingTime

	if err := s.recipeRepository.UpdateRecipe(ctx, recipe, tags, items); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.rereadRecipe(ctx, recipe.ID.String(), userID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID string, userID string, role string) error {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}

	if recipe.AuthorID.String() != userID && role != domain.RoleAdmin {
		return domain.ErrNotRecipeAuthor
	}

	return s.recipeRepository.DeleteRecipe(ctx, recipeID)
}

func (s *recipeService) FavoriteRecipe(ctx context.Context, recipeID, userID string) (domain.RecipeMinifiedResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeMinifiedResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeMinifiedResponse{}, err
	}

	if err := s.recipeRepository.AddFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeMinifiedResponse{}, domain.ErrAlreadyFavorited
		}
		return domain.RecipeMinifiedResponse{}, err
	}

	return toMinifiedResponse(recipe), nil
}

func (s *recipeService) UnfavoriteRecipe(ctx context.Context, recipeID, userID string) error {
	if err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrFavoriteNotFound
		}
		return err
	}
	return nil
}

func (s *recipeService) AddToShoppingCart(ctx context.Context, recipeID, userID string) (domain.RecipeMinifiedResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeMinifiedResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeMinifiedResponse{}, err
	}

	if err := s.recipeRepository.AddToShoppingCart(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeMinifiedResponse{}, domain.ErrAlreadyInShoppingCart
		}
		return domain.RecipeMinifiedResponse{}, err
	}

	return toMinifiedResponse(recipe), nil
}

func (s *recipeService) RemoveFromShoppingCart(ctx context.Context, recipeID, userID string) error {
	if err := s.recipeRepository.RemoveFromShoppingCart(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrShoppingCartNotFound
		}
		return err
	}
	return nil
}

func (s *recipeService) DownloadShoppingList(ctx context.Context, userID string) (string, error) {
	items, err := s.recipeRepository.GetShoppingList(ctx, userID)
	if err != nil {
		return "", err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return formatShoppingList(items), nil
}

func formatShoppingList(items []domain.ShoppingListItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s (%s) - %d", item.Name, item.MeasurementUnit, item.Total))
	}
	return strings.Join(lines, "\n")
}

// validateRecipePayload enforces the cross-field rules the struct validator
// cannot express: non-empty, duplicate-free tag and ingredient sets.
func validateRecipePayload(tags []string, ingredients []domain.RecipeIngredientRequest, cookingTime int) error {
	if len(tags) < 1 {
		return domain.ErrNoTags
	}
	if len(ingredients) < 1 {
		return domain.ErrNoIngredients
	}
	if cookingTime < 1 {
		return domain.ErrInvalidCookingTime
	}

	seenTags := make(map[string]bool, len(tags))
	for _, id := range tags {
		if seenTags[id] {
			return domain.ErrDuplicateTag
		}
		seenTags[id] = true
	}

	seenIngredients := make(map[string]bool, len(ingredients))
	for _, ingredient := range ingredients {
		if ingredient.Amount < 1 {
			return domain.ErrInvalidAmount
		}
		if seenIngredients[ingredient.ID] {
			return domain.ErrDuplicateIngredient
		}
		seenIngredients[ingredient.ID] = true
	}

	return nil
}

func (s *recipeService) resolveAssociations(ctx context.Context, tagIDs []string, ingredients []domain.RecipeIngredientRequest) ([]*entities.Tag, []*entities.RecipeIngredient, error) {
	tags, err := s.catalogRepository.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, nil, domain.ErrTagNotFound
	}

	ingredientIDs := make([]string, 0, len(ingredients))
	for _, ingredient := range ingredients {
		ingredientIDs = append(ingredientIDs, ingredient.ID)
	}

	found, err := s.catalogRepository.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(found) != len(ingredientIDs) {
		return nil, nil, domain.ErrIngredientNotFound
	}

	items := make([]*entities.RecipeIngredient, 0, len(ingredients))
	for _, ingredient := range ingredients {
		ingredientUUID, err := uuid.Parse(ingredient.ID)
		if err != nil {
			return nil, nil, domain.ErrParseUUID
		}
		items = append(items, &entities.RecipeIngredient{
			ID:           uuid.New(),
			IngredientID: ingredientUUID,
			Amount:       ingredient.Amount,
		})
	}

	return tags, items, nil
}

func (s *recipeService) uploadImage(ctx context.Context, payload string) (string, error) {
	data, contentType, ext, err := decodeBase64Image(payload)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("recipes/images/%s.%s", uuid.New().String(), ext)
	return s.s3.UploadFile(ctx, key, contentType, data)
}

// decodeBase64Image accepts either a data URL ("data:image/png;base64,...")
// or a bare base64 string.
func decodeBase64Image(payload string) ([]byte, string, string, error) {
	raw := payload
	contentType := "image/jpeg"

	if strings.HasPrefix(payload, "data:") {
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, "", "", domain.ErrInvalidImage
		}
		meta := strings.TrimSuffix(strings.TrimPrefix(parts[0], "data:"), ";base64")
		if meta != "" {
			contentType = meta
		}
		raw = parts[1]
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", "", domain.ErrInvalidImage
	}
	if len(data) == 0 {
		return nil, "", "", domain.ErrInvalidImage
	}

	ext := "jpg"
	if i := strings.Index(contentType, "/"); i >= 0 && i+1 < len(contentType) {
		ext = contentType[i+1:]
	}
	return data, contentType, ext, nil
}

func (s *recipeService) buildRecipeResponses(ctx context.Context, recipes []*entities.Recipe, userID string) ([]domain.RecipeResponse, error) {
	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	for _, recipe := range recipes {
		recipeIDs = append(recipeIDs, recipe.ID)
	}

	favorited := map[uuid.UUID]bool{}
	inCart := map[uuid.UUID]bool{}
	if userID != "" && len(recipeIDs) > 0 {
		var err error
		favorited, err = s.recipeRepository.GetFavoritedRecipeIDs(ctx, userID, recipeIDs)
		if err != nil {
			return nil, err
		}
		inCart, err = s.recipeRepository.GetShoppingCartRecipeIDs(ctx, userID, recipeIDs)
		if err != nil {
			return nil, err
		}
	}

	subscribed := map[uuid.UUID]bool{}
	res := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		author := domain.UserResponse{}
		if recipe.Author != nil {
			isSubscribed := false
			if userID != "" && recipe.Author.ID.String() != userID {
				cached, ok := subscribed[recipe.Author.ID]
				if !ok {
					var err error
					cached, err = s.userRepository.IsSubscribed(ctx, userID, recipe.Author.ID.String())
					if err != nil {
						return nil, err
					}
					subscribed[recipe.Author.ID] = cached
				}
				isSubscribed = cached
			}
			author = domain.UserResponse{
				ID:           recipe.Author.ID.String(),
				Email:        recipe.Author.Email,
				Username:     recipe.Author.Username,
				FirstName:    recipe.Author.FirstName,
				LastName:     recipe.Author.LastName,
				IsSubscribed: isSubscribed,
			}
		}

		tags := make([]domain.TagResponse, 0, len(recipe.Tags))
		for _, tag := range recipe.Tags {
			tags = append(tags, domain.TagResponse{
				ID:    tag.ID.String(),
				Name:  tag.Name,
				Color: tag.Color,
				Slug:  tag.Slug,
			})
		}

		ingredients := make([]domain.RecipeIngredientResponse, 0, len(recipe.Ingredients))
		for _, item := range recipe.Ingredients {
			line := domain.RecipeIngredientResponse{
				ID:     item.IngredientID.String(),
				Amount: item.Amount,
			}
			if item.Ingredient != nil {
				line.Name = item.Ingredient.Name
				line.MeasurementUnit = item.Ingredient.MeasurementUnit
			}
			ingredients = append(ingredients, line)
		}

		res = append(res, domain.RecipeResponse{
			ID:               recipe.ID.String(),
			Tags:             tags,
			Author:           author,
			Ingredients:      ingredients,
			IsFavorited:      favorited[recipe.ID],
			IsInShoppingCart: inCart[recipe.ID],
			Name:             recipe.Name,
			Image:            recipe.ImageURL,
			Text:             recipe.Text,
			CookingTime:      recipe.CookingTime,
		})
	}

	return res, nil
}

func (s *recipeService) rereadRecipe(ctx context.Context, recipeID, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	res, err := s.buildRecipeResponses(ctx, []*entities.Recipe{recipe}, userID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	return res[0], nil
}

func toMinifiedResponse(recipe *entities.Recipe) domain.RecipeMinifiedResponse {
	return domain.RecipeMinifiedResponse{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}
