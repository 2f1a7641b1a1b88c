package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
)

const apiTokenPrefix = "spfy_"

type DoctorRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Doctor) error
	GetByID(ctx context.Context, id string) (*domain.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*domain.Doctor, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Doctor, error)
}

// AuthService registers doctors and resolves API tokens to doctor IDs. Only
// the SHA-256 hash of a token is ever persisted; the raw token is shown once
// at registration.
type AuthService struct {
	doctorRepo DoctorRepositoryInterface
	uuidGen    UUIDGenerator
}

func NewAuthService(doctorRepo DoctorRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		doctorRepo: doctorRepo,
		uuidGen:    uuidGen,
	}
}

// RegisterDoctor creates a doctor account and returns the doctor along with
// the freshly minted API token.
func (s *AuthService) RegisterDoctor(ctx context.Context, email, fullName string) (*domain.Doctor, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, "", domain.NewDomainError(domain.ErrCodeValidation, "doctor email is required")
	}
	if strings.TrimSpace(fullName) == "" {
		return nil, "", domain.NewDomainError(domain.ErrCodeValidation, "doctor full name is required")
	}

	token, err := generateAPIToken()
	if err != nil {
		return nil, "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate api token", err)
	}

	doctor := &domain.Doctor{
		ID:           s.uuidGen.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		APITokenHash: hashToken(token),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.doctorRepo.Create(ctx, doctor); err != nil {
		return nil, "", err
	}

	return doctor, token, nil
}

// ValidateAPIToken resolves a Bearer token to the owning doctor's ID.
func (s *AuthService) ValidateAPIToken(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIToken
	}

	doctor, err := s.doctorRepo.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if err == domain.ErrDoctorNotFound {
			return "", domain.ErrInvalidAPIToken
		}
		return "", err
	}

	return doctor.ID, nil
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiTokenPrefix) {
		return false
	}
	hexPart := token[len(apiTokenPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
