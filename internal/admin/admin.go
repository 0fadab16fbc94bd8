package admin

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/models"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired admin session")
)

// Roles an admin account can hold.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator" // may force-end matches
)

// GetAdminAccount retrieves an admin account by username
func GetAdminAccount(db *sqlx.DB, username string) (*models.AdminAccount, error) {
	var admin models.AdminAccount
	err := db.Get(&admin, `SELECT username, display_name, token_hash, roles, created_at, updated_at FROM admin_accounts WHERE username=$1`, username)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken))
	return err == nil
}

// HashAdminToken hashes a plain token for storage.
func HashAdminToken(plainToken string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hashed), nil
}

// CreateAdminAccount creates or replaces an admin account (used for seeding)
func CreateAdminAccount(db *sqlx.DB, username, displayName, plainToken string, roles []string) error {
	hashedToken, err := HashAdminToken(plainToken)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO admin_accounts (username, display_name, token_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			updated_at = NOW()
	`, username, displayName, hashedToken, pq.Array(roles))

	return err
}

// ValidateAdminCredentials checks a username + token pair.
func ValidateAdminCredentials(db *sqlx.DB, username, token string) (*models.AdminAccount, error) {
	admin, err := GetAdminAccount(db, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logging.Log.Infof("[ADMIN] No admin account found for %s", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !VerifyAdminToken(admin.TokenHash, token) {
		logging.Log.Infof("[ADMIN] Token verification failed for %s", username)
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(db *sqlx.DB, username, ip, route, action string, details map[string]interface{}, success bool) error {
	if db == nil {
		logging.Log.Infof("[ADMIN] audit %s by %s success=%v %v", action, username, success, details)
		return nil
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		logging.Log.Warnf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_username, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, username, ip, route, action, detailsJSON, success)
	if err != nil {
		logging.Log.Errorf("[ADMIN] Failed to log admin action: %v", err)
	}
	return err
}

// GetAdminAuditLogs retrieves recent audit entries, optionally for one admin.
func GetAdminAuditLogs(db *sqlx.DB, username string, limit, offset int) ([]models.AdminAudit, error) {
	var logs []models.AdminAudit
	err := db.Select(&logs, `
		SELECT id, admin_username, ip, route, action, details, success, created_at
		FROM admin_audit
		WHERE ($1 = '' OR admin_username = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, username, limit, offset)
	return logs, err
}

// SessionClaims is the admin session carried in a signed JWT.
type SessionClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

func (s *SessionClaims) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IssueSession signs an admin session token valid for ttl.
func IssueSession(secret string, acc *models.AdminAccount, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Username: acc.Username,
		Roles:    []string(acc.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewV4().String(),
			Subject:   "admin:" + acc.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseSession validates an admin session token.
func ParseSession(secret, token string) (*SessionClaims, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.Username == "" {
		return nil, ErrInvalidSession
	}
	return &claims, nil
}
