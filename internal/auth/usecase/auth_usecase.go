package usecase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeAdmin = "admin"
	purposeState = "oauth_state"
	stateTTL     = 10 * time.Minute
)

type authUsecase struct {
	secret []byte
}

func NewAuthUsecase(jwtSecret string) AuthUsecase {
	return &authUsecase{secret: []byte(jwtSecret)}
}

func (u *authUsecase) IssueAdminToken(subject string, ttl time.Duration) (string, error) {
	return u.sign(jwt.MapClaims{
		"sub":     subject,
		"purpose": purposeAdmin,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	})
}

func (u *authUsecase) ValidateAdminToken(tokenString string) (string, error) {
	claims, err := u.parse(tokenString, purposeAdmin)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

func (u *authUsecase) IssueState() (string, error) {
	return u.sign(jwt.MapClaims{
		"purpose": purposeState,
		"nonce":   uuid.New().String(),
		"exp":     time.Now().Add(stateTTL).Unix(),
		"iat":     time.Now().Unix(),
	})
}

func (u *authUsecase) ValidateState(state string) error {
	_, err := u.parse(state, purposeState)
	return err
}

func (u *authUsecase) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) parse(tokenString, purpose string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return u.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
