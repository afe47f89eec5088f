package detect

import (
	"regexp"
	"strings"
)

// Checksum validators. All are binary pass/fail: a failing checksum simply
// excludes the candidate, it never raises.

// luhnValid checks whether a digit string passes the Luhn algorithm
// (ISO/IEC 7812). Non-digit characters are stripped first.
func luhnValid(number string) bool {
	s := stripNonDigits(number)
	if len(s) < 2 {
		return false
	}
	sum := 0
	dbl := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return sum%10 == 0
}

var ibanShape = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{11,30}$`)

// ibanValid verifies the ISO 13616 MOD-97 check digits. The country code and
// check digits are moved to the end, letters become two-digit values
// (A=10 ... Z=35), and the resulting decimal number must leave remainder 1
// mod 97. The reduction works over 7-digit windows so no big-integer
// arithmetic is needed.
func ibanValid(iban string) bool {
	s := strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if !ibanShape.MatchString(s) {
		return false
	}
	converted := lettersToDigits(s[4:] + s[:4])
	remainder := 0
	for i := 0; i < len(converted); i += 7 {
		end := i + 7
		if end > len(converted) {
			end = len(converted)
		}
		window := converted[i:end]
		n := remainder
		for j := 0; j < len(window); j++ {
			n = n*10 + int(window[j]-'0')
		}
		remainder = n % 97
	}
	return remainder == 1
}

var ribShape = regexp.MustCompile(`^(\d{5})(\d{5})([A-Za-z0-9]{11})(\d{2})$`)

// ribValid verifies a French RIB: bank code (5), branch code (5), account
// number (11, alphanumeric), and a 2-digit key. Letters in the account are
// converted like IBAN letters; any other non-digit becomes 0. The key must
// equal 97 minus the base value mod 97.
func ribValid(rib string) bool {
	s := strings.ReplaceAll(rib, " ", "")
	m := ribShape.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	base := lettersToDigits(strings.ToUpper(m[1] + m[2] + m[3]))
	key := int(m[4][0]-'0')*10 + int(m[4][1]-'0')
	remainder := 0
	for i := 0; i < len(base); i++ {
		c := base[i]
		d := 0
		if c >= '0' && c <= '9' {
			d = int(c - '0')
		}
		remainder = (remainder*10 + d) % 97
	}
	return 97-remainder == key
}

// sirenValid checks a 9-digit French SIREN (Luhn over the digits).
func sirenValid(s string) bool {
	n := stripNonDigits(s)
	return len(n) == 9 && luhnValid(n)
}

// siretValid checks a 14-digit French SIRET (Luhn over the digits).
func siretValid(s string) bool {
	n := stripNonDigits(s)
	return len(n) == 14 && luhnValid(n)
}

// lettersToDigits replaces each A-Z with its two-digit value (A=10 ... Z=35),
// leaving every other byte untouched.
func lettersToDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			v := int(c-'A') + 10
			b.WriteByte(byte('0' + v/10))
			b.WriteByte(byte('0' + v%10))
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// stripNonDigits removes all non-digit bytes from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
