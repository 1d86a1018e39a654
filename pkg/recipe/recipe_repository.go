package recipe

import (
	"context"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeRepository interface {
		CreateRecipe(ctx context.Context, recipe *entities.Recipe, items []*entities.RecipeIngredient) error
		UpdateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, items []*entities.RecipeIngredient) error
		DeleteRecipe(ctx context.Context, id string) error
		GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error)
		GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string) ([]*entities.Recipe, int64, error)
		GetRecipesByAuthor(ctx context.Context, authorID string, limit int) ([]*entities.Recipe, error)
		CountRecipesByAuthor(ctx context.Context, authorID string) (int64, error)

		AddFavorite(ctx context.Context, userID, recipeID string) error
		RemoveFavorite(ctx context.Context, userID, recipeID string) error
		GetFavoritedRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error)

		AddToShoppingCart(ctx context.Context, userID, recipeID string) error
		RemoveFromShoppingCart(ctx context.Context, userID, recipeID string) error
		GetShoppingCartRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error)

		GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error)
	}

	recipeRepository struct {
		db *gorm.DB
	}
)

func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) CreateRecipe(ctx context.Context, recipe *entities.Recipe, items []*entities.RecipeIngredient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recipe).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return nil
	})
}

// UpdateRecipe replaces the full tag and ingredient sets in one transaction
// so no reader observes a recipe without ingredients.
func (r *recipeRepository) UpdateRecipe(ctx context.Context, recipe *entities.Recipe, tags []*entities.Tag, items []*entities.RecipeIngredient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Ingredients", "Author").Save(recipe).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&entities.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return nil
	})
}

func (r *recipeRepository) DeleteRecipe(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Recipe{}).Error
}

func (r *recipeRepository) GetRecipeByID(ctx context.Context, id string) (*entities.Recipe, error) {
	// A malformed id cannot match any row.
	if _, err := uuid.Parse(id); err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var recipe entities.Recipe
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Preload("Ingredients.Ingredient").
		Where("id = ?", id).
		First(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepository) GetRecipes(ctx context.Context, filter domain.RecipeFilter, userID string) ([]*entities.Recipe, int64, error) {
	var recipes []*entities.Recipe
	var count int64
	offset := (filter.Page - 1) * filter.Limit

	query := r.db.WithContext(ctx).Model(&entities.Recipe{})

	if filter.AuthorID != "" {
		query = query.Where("recipes.author_id = ?", filter.AuthorID)
	}

	// A recipe matches when it carries ANY of the requested tag slugs.
	if len(filter.TagSlugs) > 0 {
		query = query.Where(
			"EXISTS (SELECT 1 FROM recipe_tags JOIN tags ON tags.id = recipe_tags.tag_id WHERE recipe_tags.recipe_id = recipes.id AND tags.slug IN ?)",
			filter.TagSlugs,
		)
	}

	if filter.IsFavorited != nil {
		sub := "EXISTS (SELECT 1 FROM favorites WHERE favorites.recipe_id = recipes.id AND favorites.user_id = ?)"
		if !*filter.IsFavorited {
			sub = "NOT " + sub
		}
		query = query.Where(sub, userID)
	}

	if filter.IsInShoppingCart != nil {
		sub := "EXISTS (SELECT 1 FROM shopping_carts WHERE shopping_carts.recipe_id = recipes.id AND shopping_carts.user_id = ?)"
		if !*filter.IsInShoppingCart {
			sub = "NOT " + sub
		}
		query = query.Where(sub, userID)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Author").
		Preload("Tags").
		Preload("Ingredients.Ingredient").
		Offset(offset).
		Limit(filter.Limit).
		Order("recipes.pub_date desc").
		Find(&recipes).Error; err != nil {
		return nil, 0, err
	}

	return recipes, count, nil
}

func (r *recipeRepository) GetRecipesByAuthor(ctx context.Context, authorID string, limit int) ([]*entities.Recipe, error) {
	var recipes []*entities.Recipe
	if err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Limit(limit).
		Order("pub_date desc").
		Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *recipeRepository) CountRecipesByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Recipe{}).
		Where("author_id = ?", authorID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// AddFavorite relies on the unique (user_id, recipe_id) index: a concurrent
// duplicate insert surfaces as gorm.ErrDuplicatedKey.
func (r *recipeRepository) AddFavorite(ctx context.Context, userID, recipeID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return err
	}

	favorite := entities.Favorite{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipeUUID,
	}
	return r.db.WithContext(ctx).Create(&favorite).Error
}

func (r *recipeRepository) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	if _, err := uuid.Parse(recipeID); err != nil {
		return gorm.ErrRecordNotFound
	}

	res := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *recipeRepository) GetFavoritedRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var favorites []entities.Favorite
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Find(&favorites).Error; err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]bool, len(favorites))
	for _, favorite := range favorites {
		ids[favorite.RecipeID] = true
	}
	return ids, nil
}

func (r *recipeRepository) AddToShoppingCart(ctx context.Context, userID, recipeID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return err
	}

	item := entities.ShoppingCart{
		ID:       uuid.New(),
		UserID:   userUUID,
		RecipeID: recipeUUID,
	}
	return r.db.WithContext(ctx).Create(&item).Error
}

func (r *recipeRepository) RemoveFromShoppingCart(ctx context.Context, userID, recipeID string) error {
	if _, err := uuid.Parse(recipeID); err != nil {
		return gorm.ErrRecordNotFound
	}

	res := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&entities.ShoppingCart{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *recipeRepository) GetShoppingCartRecipeIDs(ctx context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var items []entities.ShoppingCart
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		ids[item.RecipeID] = true
	}
	return ids, nil
}

// GetShoppingList sums ingredient amounts across every recipe in the user's
// cart, one row per distinct (name, measurement_unit).
func (r *recipeRepository) GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error) {
	var items []domain.ShoppingListItem
	if err := r.db.WithContext(ctx).
		Model(&entities.RecipeIngredient{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Joins("JOIN shopping_carts ON shopping_carts.recipe_id = recipe_ingredients.recipe_id").
		Where("shopping_carts.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name asc").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
