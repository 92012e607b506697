package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

const SaleIDPrefix = "TK"

// GenerateCode returns 2n uppercase hex characters.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateSaleID returns a human readable sale token such as TK1A2B3C4D.
func GenerateSaleID() (string, error) {
	code, err := GenerateCode(4)
	if err != nil {
		return "", err
	}
	return SaleIDPrefix + code, nil
}

// GenerateObjectKey builds a storage key of the form
// {category}/{unix}-{random}.{ext}.
func GenerateObjectKey(category, ext string, now time.Time) (string, error) {
	code, err := GenerateCode(6)
	if err != nil {
		return "", err
	}

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := fmt.Sprintf("%d-%s", now.Unix(), strings.ToLower(code))
	if ext != "" {
		name += "." + ext
	}
	return path.Join(category, name), nil
}
