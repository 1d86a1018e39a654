package user

import (
	"context"
	"errors"
	"fmt"
	"log"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/utils/mailing"
	"foodgram-backend/pkg/jwt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type (
	// RecipeLister is the slice of the recipe repository the user service
	// needs to render authors with their recipes.
	RecipeLister interface {
		GetRecipesByAuthor(ctx context.Context, authorID string, limit int) ([]*entities.Recipe, error)
		CountRecipesByAuthor(ctx context.Context, authorID string) (int64, error)
	}

	UserService interface {
		Register(ctx context.Context, req domain.RegisterRequest) (domain.UserResponse, error)
		Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
		Me(ctx context.Context, userID string) (domain.UserResponse, error)
		GetProfile(ctx context.Context, id string, currentUserID string) (domain.UserResponse, error)
		Subscribe(ctx context.Context, userID, authorID string, recipesLimit int) (domain.UserWithRecipesResponse, error)
		Unsubscribe(ctx context.Context, userID, authorID string) error
		GetSubscriptions(ctx context.Context, userID string, page, limit, recipesLimit int) ([]domain.UserWithRecipesResponse, int64, error)
	}

	userService struct {
		userRepository UserRepository
		recipes        RecipeLister
		jwtService     jwt.JWTService
	}
)

func NewUserService(userRepository UserRepository, recipes RecipeLister, jwtService jwt.JWTService) UserService {
	return &userService{
		userRepository: userRepository,
		recipes:        recipes,
		jwtService:     jwtService,
	}
}

func (s *userService) Register(ctx context.Context, req domain.RegisterRequest) (domain.UserResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserResponse{}, err
	}

	user := &entities.User{
		ID:        uuid.New(),
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  string(hashed),
		Role:      domain.RoleUser,
	}

	if err := s.userRepository.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.UserResponse{}, domain.ErrEmailAlreadyUsed
		}
		return domain.UserResponse{}, err
	}

	go func() {
		body := fmt.Sprintf("<p>Hi %s, welcome to Foodgram!</p>", user.FirstName)
		if err := mailing.SendMail(user.Email, "Welcome to Foodgram", body); err != nil {
			log.Printf("failed to send welcome email to %s: %v", user.Email, err)
		}
	}()

	return toUserResponse(user, false), nil
}

func (s *userService) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LoginResponse{}, domain.ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	token := s.jwtService.GenerateTokenUser(user.ID.String(), user.Role)
	return domain.LoginResponse{Token: token}, nil
}

func (s *userService) Me(ctx context.Context, userID string) (domain.UserResponse, error) {
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserResponse{}, domain.ErrUserNotFound
		}
		return domain.UserResponse{}, err
	}
	return toUserResponse(user, false), nil
}

func (s *userService) GetProfile(ctx context.Context, id string, currentUserID string) (domain.UserResponse, error) {
	user, err := s.userRepository.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserResponse{}, domain.ErrUserNotFound
		}
		return domain.UserResponse{}, err
	}

	isSubscribed := false
	if currentUserID != "" && currentUserID != id {
		isSubscribed, err = s.userRepository.IsSubscribed(ctx, currentUserID, id)
		if err != nil {
			return domain.UserResponse{}, err
		}
	}

	return toUserResponse(user, isSubscribed), nil
}

func (s *userService) Subscribe(ctx context.Context, userID, authorID string, recipesLimit int) (domain.UserWithRecipesResponse, error) {
	if userID == authorID {
		return domain.UserWithRecipesResponse{}, domain.ErrSelfSubscription
	}

	author, err := s.userRepository.GetUserByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserWithRecipesResponse{}, domain.ErrUserNotFound
		}
		return domain.UserWithRecipesResponse{}, err
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.UserWithRecipesResponse{}, domain.ErrParseUUID
	}

	subscription := &entities.Subscription{
		ID:       uuid.New(),
		UserID:   userUUID,
		AuthorID: author.ID,
	}

	if err := s.userRepository.Subscribe(ctx, subscription); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.UserWithRecipesResponse{}, domain.ErrAlreadySubscribed
		}
		return domain.UserWithRecipesResponse{}, err
	}

	return s.buildAuthorResponse(ctx, author, recipesLimit)
}

func (s *userService) Unsubscribe(ctx context.Context, userID, authorID string) error {
	if err := s.userRepository.Unsubscribe(ctx, userID, authorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}

func (s *userService) GetSubscriptions(ctx context.Context, userID string, page, limit, recipesLimit int) ([]domain.UserWithRecipesResponse, int64, error) {
	authors, count, err := s.userRepository.GetSubscribedAuthors(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]domain.UserWithRecipesResponse, 0, len(authors))
	for _, author := range authors {
		enriched, err := s.buildAuthorResponse(ctx, author, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, enriched)
	}

	return res, count, nil
}

func (s *userService) buildAuthorResponse(ctx context.Context, author *entities.User, recipesLimit int) (domain.UserWithRecipesResponse, error) {
	recipes, err := s.recipes.GetRecipesByAuthor(ctx, author.ID.String(), recipesLimit)
	if err != nil {
		return domain.UserWithRecipesResponse{}, err
	}

	recipesCount, err := s.recipes.CountRecipesByAuthor(ctx, author.ID.String())
	if err != nil {
		return domain.UserWithRecipesResponse{}, err
	}

	minified := make([]domain.RecipeMinifiedResponse, 0, len(recipes))
	for _, recipe := range recipes {
		minified = append(minified, domain.RecipeMinifiedResponse{
			ID:          recipe.ID.String(),
			Name:        recipe.Name,
			Image:       recipe.ImageURL,
			CookingTime: recipe.CookingTime,
		})
	}

	return domain.UserWithRecipesResponse{
		UserResponse: toUserResponse(author, true),
		Recipes:      minified,
		RecipesCount: recipesCount,
	}, nil
}

func toUserResponse(user *entities.User, isSubscribed bool) domain.UserResponse {
	return domain.UserResponse{
		ID:           user.ID.String(),
		Email:        user.Email,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		IsSubscribed: isSubscribed,
	}
}
