package domain

import (
	"errors"
)

var (
	MessageSuccessGetRecipes        = "success get recipes"
	MessageSuccessGetRecipeDetail   = "success get recipe detail"
	MessageSuccessCreateRecipe      = "recipe created successfully"
	MessageSuccessUpdateRecipe      = "recipe updated successfully"
	MessageSuccessDeleteRecipe      = "recipe deleted successfully"
	MessageSuccessFavoriteRecipe    = "recipe added to favorites"
	MessageSuccessAddToShoppingCart = "recipe added to shopping cart"
	MessageSuccessGetShoppingList   = "success get shopping list"

	MessageFailedGetRecipes       = "failed to get recipes"
	MessageFailedGetRecipeDetail  = "failed to get recipe detail"
	MessageFailedCreateRecipe     = "failed to create recipe"
	MessageFailedUpdateRecipe     = "failed to update recipe"
	MessageFailedDeleteRecipe     = "failed to delete recipe"
	MessageFailedFavoriteRecipe   = "failed to add recipe to favorites"
	MessageFailedUnfavoriteRecipe = "failed to remove recipe from favorites"
	MessageFailedShoppingCart     = "failed to update shopping cart"
	MessageFailedGetShoppingList  = "failed to get shopping list"

	ErrRecipeNotFound        = errors.New("recipe not found")
	ErrNotRecipeAuthor       = errors.New("only the author can modify this recipe")
	ErrNoTags                = errors.New("recipe must have at least one tag")
	ErrNoIngredients         = errors.New("recipe must have at least one ingredient")
	ErrDuplicateTag          = errors.New("recipe tags must not repeat")
	ErrDuplicateIngredient   = errors.New("recipe ingredients must not repeat")
	ErrInvalidAmount         = errors.New("ingredient amount must be at least 1")
	ErrInvalidCookingTime    = errors.New("cooking time must be at least 1")
	ErrInvalidImage          = errors.New("invalid image payload")
	ErrAlreadyFavorited      = errors.New("recipe already in favorites")
	ErrFavoriteNotFound      = errors.New("recipe is not in favorites")
	ErrAlreadyInShoppingCart = errors.New("recipe already in shopping cart")
	ErrShoppingCartNotFound  = errors.New("recipe is not in shopping cart")
)

type (
	// RecipeIngredientRequest is the write shape of one ingredient line.
	RecipeIngredientRequest struct {
		ID     string `json:"id" validate:"required,uuid"`
		Amount int    `json:"amount" validate:"required,min=1"`
	}

	CreateRecipeRequest struct {
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
		Name        string                    `json:"name" validate:"required,max=200"`
		Image       string                    `json:"image" validate:"required"`
		Text        string                    `json:"text" validate:"required"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
	}

	// UpdateRecipeRequest carries the same payload as create, except the
	// image may be omitted to keep the current one.
	UpdateRecipeRequest struct {
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
		Name        string                    `json:"name" validate:"required,max=200"`
		Image       string                    `json:"image" validate:"omitempty"`
		Text        string                    `json:"text" validate:"required"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
	}

	// RecipeIngredientResponse is the read shape: line item joined with the
	// ingredient's name and unit.
	RecipeIngredientResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeResponse struct {
		ID               string                     `json:"id"`
		Tags             []TagResponse              `json:"tags"`
		Author           UserResponse               `json:"author"`
		Ingredients      []RecipeIngredientResponse `json:"ingredients"`
		IsFavorited      bool                       `json:"is_favorited"`
		IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
		Name             string                     `json:"name"`
		Image            string                     `json:"image"`
		Text             string                     `json:"text"`
		CookingTime      int                        `json:"cooking_time"`
	}

	RecipeMinifiedResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime int    `json:"cooking_time"`
	}

	// RecipeFilter is the parsed query of the recipe list endpoint. The
	// boolean flags are tri-state: nil means the filter is not applied.
	RecipeFilter struct {
		AuthorID         string
		TagSlugs         []string
		IsFavorited      *bool
		IsInShoppingCart *bool
		Page             int
		Limit            int
	}

	// ShoppingListItem is one aggregated row of the shopping list.
	ShoppingListItem struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Total           int    `json:"total"`
	}
)
