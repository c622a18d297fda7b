package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AppSecretProof signs an access token with the app secret as Graph APIs
// expect. It returns "" when either input is blank.
func AppSecretProof(accessToken string, appSecret string) string {
	token := strings.TrimSpace(accessToken)
	secret := strings.TrimSpace(appSecret)
	if token == "" || secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
