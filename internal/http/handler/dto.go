package handler

import (
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"

	"golang.org/x/oauth2"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=18"`
}

type resendVerificationRequest struct {
	Email   string `json:"email" validate:"required,email,max=320"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=register reset"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=72"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=72"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=320"`
	Code        string `json:"code" validate:"required,numeric,min=4,max=18"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type linkExternalRequest struct {
	Provider          string `json:"provider" validate:"required,oneof=google apple"`
	ProviderAccountID string `json:"providerAccountId" validate:"required,max=191"`
	AccessToken       string `json:"accessToken" validate:"required,max=4096"`
	RefreshToken      string `json:"refreshToken" validate:"omitempty,max=4096"`
	TokenType         string `json:"tokenType" validate:"omitempty,max=32"`
	ExpiresIn         int64  `json:"expiresIn" validate:"gte=0"`
}

// token rebuilds the provider token set; expiresIn counts from now and zero
// means the provider gave no expiry.
func (r linkExternalRequest) token(now time.Time) *oauth2.Token {
	t := &oauth2.Token{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken, TokenType: r.TokenType}
	if r.ExpiresIn > 0 {
		t.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return t
}

type securityEventView struct {
	ID        uint              `json:"id"`
	Kind      string            `json:"kind"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type securityEventPage struct {
	Items      []securityEventView `json:"items"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	Total      int64               `json:"total"`
	TotalPages int                 `json:"totalPages"`
}

func toSecurityEventPage(res repository.PageResult[domain.SecurityEvent]) securityEventPage {
	items := make([]securityEventView, 0, len(res.Items))
	for _, ev := range res.Items {
		items = append(items, securityEventView{
			ID:        ev.ID,
			Kind:      string(ev.Kind),
			IP:        ev.IP,
			UserAgent: ev.UserAgent,
			Metadata:  ev.Metadata,
			CreatedAt: ev.CreatedAt,
		})
	}
	return securityEventPage{
		Items:      items,
		Page:       res.Page,
		PageSize:   res.PageSize,
		Total:      res.Total,
		TotalPages: res.TotalPages,
	}
}
