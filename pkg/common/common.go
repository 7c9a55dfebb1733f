package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
	NA       = "N/A"
)

var idNode *snowflake.Node

func init() {
	var err error
	idNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// UUIDint64 returns a time ordered unique int64 id
func UUIDint64() int64 {
	return idNode.Generate().Int64()
}

// ShortID returns n uppercase alphanumeric characters taken from a random UUID
func ShortID(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// Sha256Hex hex encoded SHA-256 of src
func Sha256Hex(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns nbytes of crypto random data, URL-safe base64 encoded without padding
func RandomToken(nbytes int) (string, error) {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashPassword bcrypt hash of a clear text password
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// CheckPassword compares a bcrypt hash with a clear text password
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}

func IsEmptyOrNA(val string) bool {
	return strings.TrimSpace(val) == "" || val == NA
}

// Truncate cuts s to max runes, ending with "..." when cut
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
