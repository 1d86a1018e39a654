package recipe

import (
	"context"
	"encoding/base64"
	"testing"

	"foodgram-backend/domain"
	"foodgram-backend/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRecipeRepository struct {
	recipes     map[uuid.UUID]*entities.Recipe
	items       map[uuid.UUID][]*entities.RecipeIngredient
	favorites   map[string]bool
	carts       map[string]bool
	users       map[uuid.UUID]*entities.User
	ingredients map[uuid.UUID]*entities.Ingredient
	list        []domain.ShoppingListItem
	lastFilter  domain.RecipeFilter
}

func newFakeRecipeRepository() *fakeRecipeRepository {
	return &fakeRecipeRepository{
		recipes:     map[uuid.UUID]*entities.Recipe{},
		items:       map[uuid.UUID][]*entities.RecipeIngredient{},
		favorites:   map[string]bool{},
		carts:       map[string]bool{},
		users:       map[uuid.UUID]*entities.User{},
		ingredients: map[uuid.UUID]*entities.Ingredient{},
	}
}

func pairKey(userID, recipeID string) string {
	return userID + "/" + recipeID
}

func (f *fakeRecipeRepository) CreateRecipe(_ context.Context, recipe *entities.Recipe, items []*entities.RecipeIngredient) error {
	f.recipes[recipe.ID] = recipe
	f.items[recipe.ID] = items
	return nil
}

func (f *fakeRecipeRepository) UpdateRecipe(_ context.Context, recipe *entities.Recipe, tags []*entities.Tag, items []*entities.RecipeIngredient) error {
	recipe.Tags = tags
	f.recipes[recipe.ID] = recipe
	f.items[recipe.ID] = items
	return nil
}

func (f *fakeRecipeRepository) DeleteRecipe(_ context.Context, id string) error {
	delete(f.recipes, uuid.MustParse(id))
	return nil
}

func (f *fakeRecipeRepository) GetRecipeByID(_ context.Context, id string) (*entities.Recipe, error) {
	recipeID, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	recipe, ok := f.recipes[recipeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	clone := *recipe
	clone.Author = f.users[recipe.AuthorID]
	clone.Ingredients = nil
	for _, item := range f.items[recipe.ID] {
		line := *item
		line.Ingredient = f.ingredients[item.IngredientID]
		clone.Ingredients = append(clone.Ingredients, &line)
	}
	return &clone, nil
}

func (f *fakeRecipeRepository) GetRecipes(_ context.Context, filter domain.RecipeFilter, _ string) ([]*entities.Recipe, int64, error) {
	f.lastFilter = filter
	return nil, 0, nil
}

func (f *fakeRecipeRepository) GetRecipesByAuthor(_ context.Context, _ string, _ int) ([]*entities.Recipe, error) {
	return nil, nil
}

func (f *fakeRecipeRepository) CountRecipesByAuthor(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeRecipeRepository) AddFavorite(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if f.favorites[key] {
		return gorm.ErrDuplicatedKey
	}
	f.favorites[key] = true
	return nil
}

func (f *fakeRecipeRepository) RemoveFavorite(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if !f.favorites[key] {
		return gorm.ErrRecordNotFound
	}
	delete(f.favorites, key)
	return nil
}

func (f *fakeRecipeRepository) GetFavoritedRecipeIDs(_ context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	ids := map[uuid.UUID]bool{}
	for _, id := range recipeIDs {
		if f.favorites[pairKey(userID, id.String())] {
			ids[id] = true
		}
	}
	return ids, nil
}

func (f *fakeRecipeRepository) AddToShoppingCart(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if f.carts[key] {
		return gorm.ErrDuplicatedKey
	}
	f.carts[key] = true
	return nil
}

func (f *fakeRecipeRepository) RemoveFromShoppingCart(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if !f.carts[key] {
		return gorm.ErrRecordNotFound
	}
	delete(f.carts, key)
	return nil
}

func (f *fakeRecipeRepository) GetShoppingCartRecipeIDs(_ context.Context, userID string, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	ids := map[uuid.UUID]bool{}
	for _, id := range recipeIDs {
		if f.carts[pairKey(userID, id.String())] {
			ids[id] = true
		}
	}
	return ids, nil
}

func (f *fakeRecipeRepository) GetShoppingList(_ context.Context, _ string) ([]domain.ShoppingListItem, error) {
	return f.list, nil
}

type fakeCatalogRepository struct {
	tags        map[string]*entities.Tag
	ingredients map[string]*entities.Ingredient
}

func (f *fakeCatalogRepository) GetTags(_ context.Context) ([]*entities.Tag, error) {
	return nil, nil
}

func (f *fakeCatalogRepository) GetTagByID(_ context.Context, id string) (*entities.Tag, error) {
	tag, ok := f.tags[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tag, nil
}

func (f *fakeCatalogRepository) GetTagsByIDs(_ context.Context, ids []string) ([]*entities.Tag, error) {
	var tags []*entities.Tag
	for _, id := range ids {
		if tag, ok := f.tags[id]; ok {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (f *fakeCatalogRepository) GetIngredients(_ context.Context, _ string) ([]*entities.Ingredient, error) {
	return nil, nil
}

func (f *fakeCatalogRepository) GetIngredientByID(_ context.Context, id string) (*entities.Ingredient, error) {
	ingredient, ok := f.ingredients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ingredient, nil
}

func (f *fakeCatalogRepository) GetIngredientsByIDs(_ context.Context, ids []string) ([]*entities.Ingredient, error) {
	var ingredients []*entities.Ingredient
	for _, id := range ids {
		if ingredient, ok := f.ingredients[id]; ok {
			ingredients = append(ingredients, ingredient)
		}
	}
	return ingredients, nil
}

type fakeUserRepository struct {
	subscribed map[string]bool
}

func (f *fakeUserRepository) CreateUser(_ context.Context, _ *entities.User) error { return nil }

func (f *fakeUserRepository) GetUserByEmail(_ context.Context, _ string) (*entities.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) GetUserByID(_ context.Context, _ string) (*entities.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) Subscribe(_ context.Context, _ *entities.Subscription) error { return nil }

func (f *fakeUserRepository) Unsubscribe(_ context.Context, _, _ string) error { return nil }

func (f *fakeUserRepository) IsSubscribed(_ context.Context, userID, authorID string) (bool, error) {
	return f.subscribed[pairKey(userID, authorID)], nil
}

func (f *fakeUserRepository) GetSubscribedAuthors(_ context.Context, _ string, _, _ int) ([]*entities.User, int64, error) {
	return nil, 0, nil
}

type fakeStorage struct{}

func (f *fakeStorage) UploadFile(_ context.Context, key string, _ string, _ []byte) (string, error) {
	return "https://images.test/" + key, nil
}

type serviceFixture struct {
	service    RecipeService
	repository *fakeRecipeRepository
	author     *entities.User
	tag        *entities.Tag
	flour      *entities.Ingredient
	salt       *entities.Ingredient
}

func newServiceFixture() *serviceFixture {
	author := &entities.User{
		ID:        uuid.New(),
		Email:     "author@example.com",
		Username:  "author",
		FirstName: "Alice",
		LastName:  "Baker",
	}
	tag := &entities.Tag{ID: uuid.New(), Name: "breakfast", Color: "#E26C2D", Slug: "breakfast"}
	flour := &entities.Ingredient{ID: uuid.New(), Name: "flour", MeasurementUnit: "g"}
	salt := &entities.Ingredient{ID: uuid.New(), Name: "salt", MeasurementUnit: "g"}

	repository := newFakeRecipeRepository()
	repository.users[author.ID] = author
	repository.ingredients[flour.ID] = flour
	repository.ingredients[salt.ID] = salt

	catalogRepository := &fakeCatalogRepository{
		tags: map[string]*entities.Tag{tag.ID.String(): tag},
		ingredients: map[string]*entities.Ingredient{
			flour.ID.String(): flour,
			salt.ID.String():  salt,
		},
	}
	userRepository := &fakeUserRepository{subscribed: map[string]bool{}}

	return &serviceFixture{
		service:    NewRecipeService(repository, catalogRepository, userRepository, &fakeStorage{}),
		repository: repository,
		author:     author,
		tag:        tag,
		flour:      flour,
		salt:       salt,
	}
}

func testImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not really a png"))
}

func (fx *serviceFixture) createRequest() domain.CreateRecipeRequest {
	return domain.CreateRecipeRequest{
		Tags: []string{fx.tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: fx.flour.ID.String(), Amount: 200},
		},
		Name:        "Pancakes",
		Image:       testImage(),
		Text:        "Mix and fry.",
		CookingTime: 15,
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	authorID := fx.author.ID.String()

	cases := []struct {
		name    string
		mutate  func(req *domain.CreateRecipeRequest)
		wantErr error
	}{
		{
			name:    "no tags",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Tags = nil },
			wantErr: domain.ErrNoTags,
		},
		{
			name:    "no ingredients",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Ingredients = nil },
			wantErr: domain.ErrNoIngredients,
		},
		{
			name: "duplicate tags",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Tags = append(req.Tags, req.Tags[0])
			},
			wantErr: domain.ErrDuplicateTag,
		},
		{
			name: "duplicate ingredients",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Ingredients = append(req.Ingredients, req.Ingredients[0])
			},
			wantErr: domain.ErrDuplicateIngredient,
		},
		{
			name: "zero amount",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Ingredients[0].Amount = 0
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "zero cooking time",
			mutate:  func(req *domain.CreateRecipeRequest) { req.CookingTime = 0 },
			wantErr: domain.ErrInvalidCookingTime,
		},
		{
			name: "unknown tag",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Tags = []string{uuid.New().String()}
			},
			wantErr: domain.ErrTagNotFound,
		},
		{
			name: "unknown ingredient",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Ingredients[0].ID = uuid.New().String()
			},
			wantErr: domain.ErrIngredientNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := fx.createRequest()
			tc.mutate(&req)
			_, err := fx.service.CreateRecipe(ctx, req, authorID)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateRecipeReturnsNestedRepresentation(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	res, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", res.Name)
	assert.Equal(t, 15, res.CookingTime)
	require.Len(t, res.Tags, 1)
	assert.Equal(t, "breakfast", res.Tags[0].Slug)
	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, "flour", res.Ingredients[0].Name)
	assert.Equal(t, "g", res.Ingredients[0].MeasurementUnit)
	assert.Equal(t, 200, res.Ingredients[0].Amount)
	assert.Equal(t, fx.author.Username, res.Author.Username)
	assert.False(t, res.IsFavorited)
	assert.False(t, res.IsInShoppingCart)
}

func TestUpdateRecipeReplacesIngredientSet(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	authorID := fx.author.ID.String()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), authorID)
	require.NoError(t, err)

	update := domain.UpdateRecipeRequest{
		Tags: []string{fx.tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: fx.salt.ID.String(), Amount: 5},
		},
		Name:        "Salty pancakes",
		Text:        "Mix, salt, fry.",
		CookingTime: 20,
	}

	res, err := fx.service.UpdateRecipe(ctx, created.ID, update, authorID)
	require.NoError(t, err)

	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, "salt", res.Ingredients[0].Name)
	assert.Equal(t, 5, res.Ingredients[0].Amount)

	stored := fx.repository.items[uuid.MustParse(created.ID)]
	require.Len(t, stored, 1)
	assert.Equal(t, fx.salt.ID, stored[0].IngredientID)
}

func TestUpdateRecipeRejectsNonAuthor(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	update := domain.UpdateRecipeRequest{
		Tags:        []string{fx.tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{{ID: fx.flour.ID.String(), Amount: 1}},
		Name:        "Hijacked",
		Text:        "x",
		CookingTime: 1,
	}

	_, err = fx.service.UpdateRecipe(ctx, created.ID, update, uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)
}

func TestDeleteRecipeAuthorization(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	err = fx.service.DeleteRecipe(ctx, created.ID, uuid.New().String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)

	err = fx.service.DeleteRecipe(ctx, created.ID, uuid.New().String(), domain.RoleAdmin)
	assert.NoError(t, err)
}

func TestFavoriteTwiceConflicts(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	userID := uuid.New().String()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	minified, err := fx.service.FavoriteRecipe(ctx, created.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, minified.ID)
	assert.Equal(t, created.Name, minified.Name)

	_, err = fx.service.FavoriteRecipe(ctx, created.ID, userID)
	assert.ErrorIs(t, err, domain.ErrAlreadyFavorited)
}

func TestUnfavoriteTwiceNotFound(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	userID := uuid.New().String()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	_, err = fx.service.FavoriteRecipe(ctx, created.ID, userID)
	require.NoError(t, err)

	require.NoError(t, fx.service.UnfavoriteRecipe(ctx, created.ID, userID))
	assert.ErrorIs(t, fx.service.UnfavoriteRecipe(ctx, created.ID, userID), domain.ErrFavoriteNotFound)
}

func TestShoppingCartToggle(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	userID := uuid.New().String()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	_, err = fx.service.AddToShoppingCart(ctx, created.ID, userID)
	require.NoError(t, err)

	_, err = fx.service.AddToShoppingCart(ctx, created.ID, userID)
	assert.ErrorIs(t, err, domain.ErrAlreadyInShoppingCart)

	require.NoError(t, fx.service.RemoveFromShoppingCart(ctx, created.ID, userID))
	assert.ErrorIs(t, fx.service.RemoveFromShoppingCart(ctx, created.ID, userID), domain.ErrShoppingCartNotFound)
}

func TestFlagsAreFalseForAnonymousRequester(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	userID := uuid.New().String()

	created, err := fx.service.CreateRecipe(ctx, fx.createRequest(), fx.author.ID.String())
	require.NoError(t, err)

	_, err = fx.service.FavoriteRecipe(ctx, created.ID, userID)
	require.NoError(t, err)
	_, err = fx.service.AddToShoppingCart(ctx, created.ID, userID)
	require.NoError(t, err)

	asUser, err := fx.service.GetRecipeDetail(ctx, created.ID, userID)
	require.NoError(t, err)
	assert.True(t, asUser.IsFavorited)
	assert.True(t, asUser.IsInShoppingCart)

	anonymous, err := fx.service.GetRecipeDetail(ctx, created.ID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.IsFavorited)
	assert.False(t, anonymous.IsInShoppingCart)
}

func TestAnonymousListDropsPersonalFilters(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	flag := true
	filter := domain.RecipeFilter{
		IsFavorited:      &flag,
		IsInShoppingCart: &flag,
		Page:             1,
		Limit:            20,
	}

	_, _, err := fx.service.GetRecipes(ctx, filter, "")
	require.NoError(t, err)
	assert.Nil(t, fx.repository.lastFilter.IsFavorited)
	assert.Nil(t, fx.repository.lastFilter.IsInShoppingCart)

	_, _, err = fx.service.GetRecipes(ctx, filter, uuid.New().String())
	require.NoError(t, err)
	require.NotNil(t, fx.repository.lastFilter.IsFavorited)
	assert.True(t, *fx.repository.lastFilter.IsFavorited)
	require.NotNil(t, fx.repository.lastFilter.IsInShoppingCart)
	assert.True(t, *fx.repository.lastFilter.IsInShoppingCart)
}

func TestGetRecipeDetailMalformedID(t *testing.T) {
	fx := newServiceFixture()

	_, err := fx.service.GetRecipeDetail(context.Background(), "not-a-uuid", "")
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestDownloadShoppingListAggregatesAndSorts(t *testing.T) {
	fx := newServiceFixture()
	fx.repository.list = []domain.ShoppingListItem{
		{Name: "salt", MeasurementUnit: "g", Total: 15},
		{Name: "flour", MeasurementUnit: "g", Total: 200},
	}

	text, err := fx.service.DownloadShoppingList(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Equal(t, "flour (g) - 200\nsalt (g) - 15", text)
}

func TestFormatShoppingListEmpty(t *testing.T) {
	assert.Equal(t, "", formatShoppingList(nil))
}

func TestDecodeBase64Image(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(payload)

	data, contentType, ext, err := decodeBase64Image("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "png", ext)

	data, contentType, ext, err = decodeBase64Image(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, "jpg", ext)

	_, _, _, err = decodeBase64Image("data:image/png;base64,***")
	assert.ErrorIs(t, err, domain.ErrInvalidImage)

	_, _, _, err = decodeBase64Image("")
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}
