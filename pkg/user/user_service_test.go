package user

import (
	"context"
	"testing"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type memoryUserRepository struct {
	byID          map[string]*entities.User
	byEmail       map[string]*entities.User
	subscriptions map[string]bool
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{
		byID:          map[string]*entities.User{},
		byEmail:       map[string]*entities.User{},
		subscriptions: map[string]bool{},
	}
}

func subscriptionKey(userID, authorID string) string {
	return userID + "/" + authorID
}

func (r *memoryUserRepository) CreateUser(_ context.Context, user *entities.User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.byID[user.ID.String()] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *memoryUserRepository) GetUserByEmail(_ context.Context, email string) (*entities.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *memoryUserRepository) GetUserByID(_ context.Context, id string) (*entities.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *memoryUserRepository) Subscribe(_ context.Context, subscription *entities.Subscription) error {
	key := subscriptionKey(subscription.UserID.String(), subscription.AuthorID.String())
	if r.subscriptions[key] {
		return gorm.ErrDuplicatedKey
	}
	r.subscriptions[key] = true
	return nil
}

func (r *memoryUserRepository) Unsubscribe(_ context.Context, userID, authorID string) error {
	key := subscriptionKey(userID, authorID)
	if !r.subscriptions[key] {
		return gorm.ErrRecordNotFound
	}
	delete(r.subscriptions, key)
	return nil
}

func (r *memoryUserRepository) IsSubscribed(_ context.Context, userID, authorID string) (bool, error) {
	return r.subscriptions[subscriptionKey(userID, authorID)], nil
}

func (r *memoryUserRepository) GetSubscribedAuthors(_ context.Context, userID string, _, _ int) ([]*entities.User, int64, error) {
	var authors []*entities.User
	for key := range r.subscriptions {
		for id, user := range r.byID {
			if key == subscriptionKey(userID, id) {
				authors = append(authors, user)
			}
		}
	}
	return authors, int64(len(authors)), nil
}

// fakeRecipeLister pretends every author has the same fixed recipe set.
type fakeRecipeLister struct {
	recipes []*entities.Recipe
}

func (f *fakeRecipeLister) GetRecipesByAuthor(_ context.Context, _ string, limit int) ([]*entities.Recipe, error) {
	if limit < len(f.recipes) {
		return f.recipes[:limit], nil
	}
	return f.recipes, nil
}

func (f *fakeRecipeLister) CountRecipesByAuthor(_ context.Context, _ string) (int64, error) {
	return int64(len(f.recipes)), nil
}

func seedUser(t *testing.T, repository *memoryUserRepository, email, username, password string) *entities.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &entities.User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  string(hashed),
		Role:      domain.RoleUser,
	}
	require.NoError(t, repository.CreateUser(context.Background(), user))
	return user
}

func newUserService(repository *memoryUserRepository, lister RecipeLister) UserService {
	if lister == nil {
		lister = &fakeRecipeLister{}
	}
	return NewUserService(repository, lister, jwt.NewJWTService())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repository := newMemoryUserRepository()
	service := newUserService(repository, nil)
	ctx := context.Background()

	req := domain.RegisterRequest{
		Email:     "cook@example.com",
		Username:  "cook",
		FirstName: "Carol",
		LastName:  "Cook",
		Password:  "super-secret",
	}

	res, err := service.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.Email, res.Email)
	assert.Equal(t, req.Username, res.Username)
	assert.False(t, res.IsSubscribed)

	req.Username = "cook2"
	_, err = service.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyUsed)
}

func TestLogin(t *testing.T) {
	repository := newMemoryUserRepository()
	service := newUserService(repository, nil)
	ctx := context.Background()

	seedUser(t, repository, "cook@example.com", "cook", "super-secret")

	res, err := service.Login(ctx, domain.LoginRequest{Email: "cook@example.com", Password: "super-secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = service.Login(ctx, domain.LoginRequest{Email: "cook@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = service.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "super-secret"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestGetProfileSubscriptionFlag(t *testing.T) {
	repository := newMemoryUserRepository()
	service := newUserService(repository, nil)
	ctx := context.Background()

	viewer := seedUser(t, repository, "viewer@example.com", "viewer", "pw")
	author := seedUser(t, repository, "author@example.com", "author", "pw")
	repository.subscriptions[subscriptionKey(viewer.ID.String(), author.ID.String())] = true

	res, err := service.GetProfile(ctx, author.ID.String(), viewer.ID.String())
	require.NoError(t, err)
	assert.True(t, res.IsSubscribed)

	res, err = service.GetProfile(ctx, author.ID.String(), "")
	require.NoError(t, err)
	assert.False(t, res.IsSubscribed)

	res, err = service.GetProfile(ctx, viewer.ID.String(), viewer.ID.String())
	require.NoError(t, err)
	assert.False(t, res.IsSubscribed)

	_, err = service.GetProfile(ctx, uuid.New().String(), "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSubscribe(t *testing.T) {
	repository := newMemoryUserRepository()
	lister := &fakeRecipeLister{recipes: []*entities.Recipe{
		{ID: uuid.New(), Name: "Soup", CookingTime: 30},
		{ID: uuid.New(), Name: "Bread", CookingTime: 90},
		{ID: uuid.New(), Name: "Stew", CookingTime: 120},
		{ID: uuid.New(), Name: "Pie", CookingTime: 60},
		{ID: uuid.New(), Name: "Cake", CookingTime: 45},
	}}
	service := newUserService(repository, lister)
	ctx := context.Background()

	viewer := seedUser(t, repository, "viewer@example.com", "viewer", "pw")
	author := seedUser(t, repository, "author@example.com", "author", "pw")

	_, err := service.Subscribe(ctx, viewer.ID.String(), viewer.ID.String(), 3)
	assert.ErrorIs(t, err, domain.ErrSelfSubscription)

	_, err = service.Subscribe(ctx, viewer.ID.String(), uuid.New().String(), 3)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	res, err := service.Subscribe(ctx, viewer.ID.String(), author.ID.String(), 3)
	require.NoError(t, err)
	assert.Equal(t, author.Username, res.Username)
	assert.True(t, res.IsSubscribed)
	assert.Len(t, res.Recipes, 3)
	assert.Equal(t, int64(5), res.RecipesCount)

	_, err = service.Subscribe(ctx, viewer.ID.String(), author.ID.String(), 3)
	assert.ErrorIs(t, err, domain.ErrAlreadySubscribed)
}

func TestUnsubscribe(t *testing.T) {
	repository := newMemoryUserRepository()
	service := newUserService(repository, nil)
	ctx := context.Background()

	viewer := seedUser(t, repository, "viewer@example.com", "viewer", "pw")
	author := seedUser(t, repository, "author@example.com", "author", "pw")

	assert.ErrorIs(t, service.Unsubscribe(ctx, viewer.ID.String(), author.ID.String()), domain.ErrSubscriptionNotFound)

	_, err := service.Subscribe(ctx, viewer.ID.String(), author.ID.String(), 3)
	require.NoError(t, err)

	require.NoError(t, service.Unsubscribe(ctx, viewer.ID.String(), author.ID.String()))
	assert.ErrorIs(t, service.Unsubscribe(ctx, viewer.ID.String(), author.ID.String()), domain.ErrSubscriptionNotFound)
}

func TestGetSubscriptions(t *testing.T) {
	repository := newMemoryUserRepository()
	lister := &fakeRecipeLister{recipes: []*entities.Recipe{
		{ID: uuid.New(), Name: "Soup", CookingTime: 30},
	}}
	service := newUserService(repository, lister)
	ctx := context.Background()

	viewer := seedUser(t, repository, "viewer@example.com", "viewer", "pw")
	author := seedUser(t, repository, "author@example.com", "author", "pw")

	_, err := service.Subscribe(ctx, viewer.ID.String(), author.ID.String(), 3)
	require.NoError(t, err)

	res, count, err := service.GetSubscriptions(ctx, viewer.ID.String(), 1, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, res, 1)
	assert.Equal(t, author.Username, res[0].Username)
	assert.Equal(t, int64(1), res[0].RecipesCount)
	require.Len(t, res[0].Recipes, 1)
	assert.Equal(t, "Soup", res[0].Recipes[0].Name)
}
