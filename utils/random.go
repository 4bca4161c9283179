package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// ticketCodeCharset excludes lookalike characters on purpose.
const ticketCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateTicketCode returns a globally unique, unguessable ticket code of the
// form TKT-<timestamp base36>-<random suffix>, all uppercase alphanumeric.
func GenerateTicketCode() (string, error) {
	byt := make([]byte, 6)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	suffix := make([]byte, len(byt))
	for i, b := range byt {
		suffix[i] = ticketCodeCharset[int(b)%len(ticketCodeCharset)]
	}

	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	return fmt.Sprintf("TKT-%s-%s", ts, string(suffix)), nil
}

// GenerateReferenceLabel returns a short reference label used to tag gateway
// payable-reference requests.
func GenerateReferenceLabel(prefix string) (string, error) {
	code, err := GenerateCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, code), nil
}
