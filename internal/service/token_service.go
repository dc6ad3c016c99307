package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService emite y valida tokens de sesión JWT firmados con secreto
// compartido. Los tokens son autocontenidos: la validez depende solo de la
// firma y del exp embebido, sin estado en el servidor.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// Claims son los datos embebidos en un token de sesión. Subject es el id de
// la cuenta; Email es una copia al momento de emisión y puede quedar stale.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// La distinción entre estos tres fallos existe solo para logging interno;
// en el borde HTTP los tres colapsan en un 401 genérico.
var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenMalformed    = errors.New("token malformed")
)

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "careerbridge",
	}
}

// TTL devuelve la vida configurada de los tokens emitidos.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue firma un token para la cuenta indicada con exp = iat + TTL.
func (s *TokenService) Issue(accountID, email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("signing secret not configured")
	}
	now := time.Now().UTC()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifica firma y expiración y clasifica el fallo.
func (s *TokenService) Validate(tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrTokenBadSignature
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenMalformed
	}

	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenBadSignature
		default:
			return Claims{}, ErrTokenMalformed
		}
	}

	if strings.TrimSpace(claims.Subject) == "" || claims.Issuer != s.issuer {
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}
