// twofactor.go - TOTP second factor with one-time backup codes
//
// Secrets are stored encrypted; backup codes only as bcrypt hashes and are
// removed once used.

package twofactor

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"

	"go-nutri-backend/models"
)

var (
	ErrNotConfigured = errors.New("two-factor authentication not configured")
	ErrInvalidCode   = errors.New("invalid two-factor code")
)

const (
	backupCodeCount = 8
	skew            = 2 // periods accepted either side of now
	qrSize          = 200
)

type Manager struct {
	db     *gorm.DB
	key    []byte
	issuer string
	now    func() time.Time
}

// NewManager uses encryptionKey (any length, hashed to 32 bytes) to seal
// secrets at rest.
func NewManager(db *gorm.DB, encryptionKey, issuer string) *Manager {
	sum := sha256.Sum256([]byte(encryptionKey))
	return &Manager{db: db, key: sum[:], issuer: issuer, now: time.Now}
}

// Setup is returned once, when the user starts enrolling.
type Setup struct {
	Secret      string   `json:"secret"`
	URL         string   `json:"otpauth_url"`
	QRCode      string   `json:"qr_code"` // PNG data URL
	BackupCodes []string `json:"backup_codes"`
}

// Setup creates a fresh secret and backup codes for userID, replacing any
// previous ones and leaving the factor disabled until Enable.
func (m *Manager) Setup(ctx context.Context, userID uint, email string) (*Setup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: email,
		SecretSize:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	codes, hashJSON, err := newBackupCodes()
	if err != nil {
		return nil, err
	}

	sealed, err := m.seal(key.Secret())
	if err != nil {
		return nil, err
	}

	var rec models.TwoFactorAuth
	err = m.db.WithContext(ctx).Where(models.TwoFactorAuth{UserID: userID}).
		Assign(map[string]interface{}{"secret": sealed, "backup_codes": hashJSON, "is_enabled": false}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, err
	}

	return &Setup{
		Secret:      key.Secret(),
		URL:         key.URL(),
		QRCode:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes: codes,
	}, nil
}

// Enable turns the factor on after the user proves they hold the secret.
func (m *Manager) Enable(ctx context.Context, userID uint, code string) error {
	rec, err := m.load(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := m.checkTOTP(rec, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	return m.db.WithContext(ctx).Model(rec).Update("is_enabled", true).Error
}

// Disable removes the factor entirely.
func (m *Manager) Disable(ctx context.Context, userID uint) error {
	res := m.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TwoFactorAuth{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotConfigured
	}
	return nil
}

// Enabled reports whether login must ask for a second factor.
func (m *Manager) Enabled(ctx context.Context, userID uint) (bool, error) {
	rec, err := m.load(ctx, userID)
	if errors.Is(err, ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.IsEnabled, nil
}

// Status is what the settings page shows.
type Status struct {
	Configured      bool `json:"configured"`
	Enabled         bool `json:"enabled"`
	BackupCodesLeft int  `json:"backup_codes_left"`
}

func (m *Manager) Status(ctx context.Context, userID uint) (Status, error) {
	rec, err := m.load(ctx, userID)
	if errors.Is(err, ErrNotConfigured) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	var hashes []string
	_ = json.Unmarshal([]byte(rec.BackupCodes), &hashes)
	return Status{Configured: true, Enabled: rec.IsEnabled, BackupCodesLeft: len(hashes)}, nil
}

// Verify checks a login code. Backup codes work once.
func (m *Manager) Verify(ctx context.Context, userID uint, code string, backup bool) (bool, error) {
	rec, err := m.load(ctx, userID)
	if errors.Is(err, ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rec.IsEnabled {
		return false, nil
	}
	if !backup {
		return m.checkTOTP(rec, code)
	}

	var hashes []string
	if err := json.Unmarshal([]byte(rec.BackupCodes), &hashes); err != nil {
		return false, fmt.Errorf("backup codes: %w", err)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			hashes = append(hashes[:i], hashes[i+1:]...)
			remaining, _ := json.Marshal(hashes)
			if err := m.db.WithContext(ctx).Model(rec).Update("backup_codes", string(remaining)).Error; err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RegenerateBackupCodes replaces every backup code of an enabled factor.
// The caller proves possession with a current TOTP code.
func (m *Manager) RegenerateBackupCodes(ctx context.Context, userID uint, code string) ([]string, error) {
	rec, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.IsEnabled {
		return nil, ErrNotConfigured
	}
	ok, err := m.checkTOTP(rec, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}
	codes, hashJSON, err := newBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).Model(rec).Update("backup_codes", hashJSON).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// newBackupCodes returns fresh plain codes and the JSON list of their hashes.
func newBackupCodes() ([]string, string, error) {
	codes, err := GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, "", err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		h, err := bcrypt.GenerateFromPassword([]byte(c), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}
		hashes[i] = string(h)
	}
	hashJSON, err := json.Marshal(hashes)
	if err != nil {
		return nil, "", err
	}
	return codes, string(hashJSON), nil
}

func (m *Manager) load(ctx context.Context, userID uint) (*models.TwoFactorAuth, error) {
	var rec models.TwoFactorAuth
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Manager) checkTOTP(rec *models.TwoFactorAuth, code string) (bool, error) {
	secret, err := m.open(rec.Secret)
	if err != nil {
		return false, err
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, m.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil { // malformed code, e.g. wrong length
		return false, nil
	}
	return ok, nil
}

func (m *Manager) seal(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(m.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (m *Manager) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	aead, err := chacha20poly1305.NewX(m.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("sealed secret too short")
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	return string(plain), nil
}

// GenerateBackupCodes returns n random 8 character uppercase hex codes.
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(b))
	}
	return codes, nil
}
