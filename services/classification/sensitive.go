package classification

import (
	"regexp"
	"strings"
)

// SensitiveKind is a category of content that must not leave the host
type SensitiveKind string

const (
	SensitiveEmail       SensitiveKind = "email"
	SensitivePhone       SensitiveKind = "phone"
	SensitiveSSN         SensitiveKind = "ssn"
	SensitiveCreditCard  SensitiveKind = "credit_card"
	SensitiveAPIKey      SensitiveKind = "api_key"
	SensitivePrivateKey  SensitiveKind = "private_key"
	SensitiveToken       SensitiveKind = "token"
	SensitivePassword    SensitiveKind = "password"
	SensitiveDatabaseURL SensitiveKind = "database_url"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	phonePattern = regexp.MustCompile(`(?:^|[^\w])(\+?1[-.\s]?)?\(?[2-9][0-9]{2}\)?[-.\s][0-9]{3}[-.\s][0-9]{4}\b`)

	ssnPattern = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)

	cardPattern = regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`)

	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),            // AWS access key
		regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`),      // GCP
		regexp.MustCompile(`\bsk-ant-[A-Za-z0-9\-_]{20,}`),    // Anthropic
		regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9]{32,}`), // OpenAI
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),  // GitHub
		regexp.MustCompile(`\b[sr]k_(?:live|test)_[0-9a-zA-Z]{24,}\b`),
		regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}`),
		regexp.MustCompile(`(?i)api[_\-]?key\s*[:=]\s*['"]?[A-Za-z0-9_\-]{20,}`),
	}

	privateKeyPattern = regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`)

	tokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`),
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-\.]{20,}`),
		regexp.MustCompile(`(?i)access[_\-]?token\s*[:=]\s*['"]?[A-Za-z0-9_\-\.]{20,}`),
	}

	passwordPattern = regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}`)

	databaseURLPattern = regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb|redis)://[^\s'":]+:[^\s'"@]+@[^\s'"]+`)
)

// DetectSensitive returns the kinds of sensitive content found in text, in
// a fixed order and without duplicates
func DetectSensitive(text string) []SensitiveKind {
	var found []SensitiveKind

	if emailPattern.MatchString(text) {
		found = append(found, SensitiveEmail)
	}
	if phonePattern.MatchString(text) {
		found = append(found, SensitivePhone)
	}
	if ssnPattern.MatchString(text) && hasValidSSN(text) {
		found = append(found, SensitiveSSN)
	}
	for _, m := range cardPattern.FindAllString(text, -1) {
		if luhnValid(m) {
			found = append(found, SensitiveCreditCard)
			break
		}
	}
	for _, p := range apiKeyPatterns {
		if p.MatchString(text) {
			found = append(found, SensitiveAPIKey)
			break
		}
	}
	if privateKeyPattern.MatchString(text) {
		found = append(found, SensitivePrivateKey)
	}
	for _, p := range tokenPatterns {
		if p.MatchString(text) {
			found = append(found, SensitiveToken)
			break
		}
	}
	if passwordPattern.MatchString(text) {
		found = append(found, SensitivePassword)
	}
	if databaseURLPattern.MatchString(text) {
		found = append(found, SensitiveDatabaseURL)
	}

	return found
}

// hasValidSSN rejects the number ranges never issued as SSNs
func hasValidSSN(text string) bool {
	for _, m := range ssnPattern.FindAllString(text, -1) {
		area, group, serial := m[:3], m[4:6], m[7:]
		if area == "000" || area == "666" || area[0] == '9' || group == "00" || serial == "0000" {
			continue
		}
		return true
	}
	return false
}

// luhnValid validates a card number with the Luhn checksum
func luhnValid(number string) bool {
	number = strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
