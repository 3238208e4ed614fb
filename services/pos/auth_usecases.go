package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	resetTokenBytes   = 32
)

// AuthResult é o retorno do login
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// AuthUseCase contém a lógica de cadastro, login e redefinição de senha
type AuthUseCase struct {
	users      UserRepository
	tokens     *TokenIssuer
	mailer     Mailer
	tracer     trace.Tracer
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
	dummyHash  func() []byte
}

// NewAuthUseCase cria uma nova instância de AuthUseCase. mailer pode ser nil.
func NewAuthUseCase(users UserRepository, tokens *TokenIssuer, mailer Mailer, cfg AuthConfig, tracer trace.Tracer) *AuthUseCase {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &AuthUseCase{
		users:      users,
		tokens:     tokens,
		mailer:     mailer,
		tracer:     tracerOrNoop(tracer),
		bcryptCost: cost,
		resetTTL:   resetTTL,
		now:        time.Now,
		dummyHash: sync.OnceValue(func() []byte {
			hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
			return hash
		}),
	}
}

// Register cadastra um usuário. Email já cadastrado retorna ErrEmailTaken.
func (uc *AuthUseCase) Register(ctx context.Context, email, password, name string) (*User, error) {
	ctx, span := uc.tracer.Start(ctx, "register_user")
	defer span.End()

	email = normalizeEmail(email)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, validationError("a valid email is required")
	case strings.TrimSpace(name) == "":
		return nil, validationError("name is required")
	case len(password) < minPasswordLength:
		return nil, validationError(fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}

	_, err := uc.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := NewUser(email, name, string(hash))
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	logger.Info("✅ [REGISTER] user created", zap.String("user_id", user.ID))
	return user, nil
}

// Login valida as credenciais e emite o bearer token. Email desconhecido e senha
// errada retornam o mesmo ErrInvalidCredentials.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := uc.tracer.Start(ctx, "login")
	defer span.End()

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Mantém o tempo de resposta próximo ao de uma senha errada
		_ = bcrypt.CompareHashAndPassword(uc.dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := uc.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// IssueResetToken gera um token de uso único para o usuário. Só o hash é gravado.
func (uc *AuthUseCase) IssueResetToken(ctx context.Context, email string) (string, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expires := uc.now().Add(uc.resetTTL).UTC()
	user.ResetTokenHash = hashResetToken(token)
	user.ResetTokenExpires = &expires
	if err := uc.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return token, nil
}

// RequestPasswordReset emite o token e envia por email
func (uc *AuthUseCase) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := uc.tracer.Start(ctx, "request_password_reset")
	defer span.End()

	if uc.mailer == nil {
		return ErrMailerUnavailable
	}

	token, err := uc.IssueResetToken(ctx, email)
	if err != nil {
		return err
	}

	err = uc.mailer.Send(ctx, Mail{
		To:      normalizeEmail(email),
		Subject: "Password reset",
		Text: fmt.Sprintf("Use this token to reset your password: %s\nIt expires in %d minutes.",
			token, int(uc.resetTTL.Minutes())),
	})
	if err != nil {
		logger.Error("❌ [PASSWORD RESET] mail delivery failed", zap.Error(err))
		return err
	}
	return nil
}

// ResetPassword troca a senha se o token for válido e não tiver expirado.
// O token é invalidado no sucesso.
func (uc *AuthUseCase) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	ctx, span := uc.tracer.Start(ctx, "reset_password")
	defer span.End()

	if len(newPassword) < minPasswordLength {
		return validationError(fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	if user.ResetTokenHash == "" || user.ResetTokenExpires == nil {
		return ErrInvalidResetToken
	}
	if subtle.ConstantTimeCompare([]byte(hashResetToken(token)), []byte(user.ResetTokenHash)) != 1 {
		return ErrInvalidResetToken
	}
	if !uc.now().Before(*user.ResetTokenExpires) {
		return ErrResetTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), uc.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.ClearResetToken()

	// Duas trocas concorrentes com o mesmo token: só a primeira grava
	if err := uc.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrInvalidResetToken
		}
		return err
	}
	logger.Info("✅ [PASSWORD RESET] password changed", zap.String("user_id", user.ID))
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
