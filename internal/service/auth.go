package service

import (
	"context"
	"fmt"
	"strings"

	"team-pulse/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct{ db *gorm.DB }

func NewAuthService(db *gorm.DB) *AuthService { return &AuthService{db: db} }

func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Member, error) {
	var m model.Member
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if !m.Active {
		return nil, fmt.Errorf("account disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("wrong password")
	}
	return &m, nil
}

// CreateMember hashes the password and stores a new active member.
func (s *AuthService) CreateMember(ctx context.Context, m *model.Member, password string) error {
	if strings.TrimSpace(m.Username) == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	m.Password = string(hash)
	m.Active = true
	if m.Role == "" {
		m.Role = "member"
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *AuthService) GetMember(ctx context.Context, id int) (*model.Member, error) {
	var m model.Member
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, fmt.Errorf("get member %d: %w", id, err)
	}
	return &m, nil
}
