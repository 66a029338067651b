package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scribe/common"
	"scribe/models"
	"scribe/policy"
	"scribe/token"
)

// Mailer sends account notifications. A nil Mailer disables them.
type Mailer interface {
	SendWelcomeEmail(to, name string) error
}

type AuthModule struct {
	db         *gorm.DB
	tokens     *token.Service
	mailer     Mailer
	bcryptCost int
	dummyHash  string
	logger     *slog.Logger
}

func NewAuthModule(db *gorm.DB, tokens *token.Service, mailer Mailer, bcryptCost int, logger *slog.Logger) *AuthModule {
	logger = common.ResolveLogger(logger)
	// compared against when the email is unknown so both paths cost one bcrypt check
	dummy, err := hashPassword("scribe-dummy-password", bcryptCost)
	if err != nil {
		logger.Warn("could not precompute dummy password hash", "error", err)
	}
	return &AuthModule{
		db:         db,
		tokens:     tokens,
		mailer:     mailer,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     logger,
	}
}

func (a *AuthModule) RegisterRoutes(router gin.IRouter) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", a.register)
		authGroup.POST("/login", a.login)
		authGroup.GET("/me", RequireAuth(a.tokens), a.me)
		authGroup.PUT("/me", RequireAuth(a.tokens), a.updateMe)
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfilePatch is the self-service profile update. There is no role field:
// roles only change out of band.
type ProfilePatch struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type profileInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

// Register creates a reader account and returns it with a fresh token.
func (a *AuthModule) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := common.ValidateStruct(in).OrNil(); err != nil {
		return nil, "", err
	}

	var existing models.User
	err := a.db.WithContext(ctx).Where("email = ?", in.Email).First(&existing).Error
	if err == nil {
		return nil, "", common.Conflict("User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	passwordHash, err := hashPassword(in.Password, a.bcryptCost)
	if err != nil {
		return nil, "", err
	}

	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleReader,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		if common.IsUniqueViolation(err) {
			return nil, "", common.Conflict("User already exists")
		}
		return nil, "", err
	}

	signed, err := a.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}

	a.sendWelcome(user)
	return &user, signed, nil
}

// Login checks the credentials and returns a fresh token.
func (a *AuthModule) Login(ctx context.Context, in LoginInput) (*models.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := common.ValidateStruct(in).OrNil(); err != nil {
		return nil, "", err
	}

	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", err
		}
		checkPasswordHash(in.Password, a.dummyHash)
		return nil, "", common.Unauthenticated("Invalid credentials")
	}

	if !checkPasswordHash(in.Password, user.PasswordHash) {
		return nil, "", common.Unauthenticated("Invalid credentials")
	}

	signed, err := a.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return &user, signed, nil
}

// Profile loads the caller's own account.
func (a *AuthModule) Profile(ctx context.Context, id policy.Identity) (*models.User, error) {
	if !id.Authenticated() {
		return nil, common.Unauthenticated(notAuthorized)
	}
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", id.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the caller's name and/or password.
func (a *AuthModule) UpdateProfile(ctx context.Context, id policy.Identity, patch ProfilePatch) (*models.User, error) {
	user, err := a.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	in := profileInput{Name: user.Name}
	if patch.Name != nil {
		in.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Password != nil {
		in.Password = *patch.Password
		if in.Password == "" {
			v := &common.ValidationError{}
			v.Add("password", "Password must be at least 6 characters")
			return nil, v
		}
	}
	if err := common.ValidateStruct(in).OrNil(); err != nil {
		return nil, err
	}

	updates := map[string]any{"name": in.Name}
	if in.Password != "" {
		passwordHash, err := hashPassword(in.Password, a.bcryptCost)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = passwordHash
	}

	result := a.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id.UserID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.NotFound("User not found")
	}

	return a.Profile(ctx, id)
}

func (a *AuthModule) sendWelcome(user models.User) {
	if a.mailer == nil {
		return
	}
	go func() {
		if err := a.mailer.SendWelcomeEmail(user.Email, user.Name); err != nil {
			a.logger.Warn("welcome email failed", "user_id", user.ID, "error", err)
		}
	}()
}

func (a *AuthModule) register(c *gin.Context) {
	var input RegisterInput
	if !common.BindJSON(c, a.logger, &input) {
		return
	}

	user, signed, err := a.Register(c.Request.Context(), input)
	if err != nil {
		common.RespondError(c, a.logger, err)
		return
	}

	a.logger.Info("user registered", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "token": signed, "user": user})
}

func (a *AuthModule) login(c *gin.Context) {
	var input LoginInput
	if !common.BindJSON(c, a.logger, &input) {
		return
	}

	user, signed, err := a.Login(c.Request.Context(), input)
	if err != nil {
		common.RespondError(c, a.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": signed, "user": user})
}

func (a *AuthModule) me(c *gin.Context) {
	user, err := a.Profile(c.Request.Context(), CurrentIdentity(c))
	if err != nil {
		common.RespondError(c, a.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func (a *AuthModule) updateMe(c *gin.Context) {
	var patch ProfilePatch
	if !common.BindJSON(c, a.logger, &patch) {
		return
	}

	user, err := a.UpdateProfile(c.Request.Context(), CurrentIdentity(c), patch)
	if err != nil {
		common.RespondError(c, a.logger, err)
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
