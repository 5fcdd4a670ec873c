// internal/matching/tables.go
package matching

import (
	"strings"
	"unicode/utf8"
)

type relatedSpecialties struct {
	token   string
	related []string
}

// Ordered so the first table hit is deterministic.
var relatedSpecialtyTable = []relatedSpecialties{
	{token: "it", related: []string{"個人事業主", "スタートアップ", "フリーランス"}},
	{token: "ec", related: []string{"小売", "retail", "個人事業主"}},
	{token: "飲食", related: []string{"個人事業主", "サービス業"}},
	{token: "不動産", related: []string{"法人税務", "相続"}},
}

var nearbyRegions = map[string][]string{
	"東京":  {"神奈川", "埼玉", "千葉"},
	"神奈川": {"東京", "静岡"},
	"大阪":  {"京都", "兵庫", "奈良"},
	"愛知":  {"岐阜", "三重", "静岡"},
}

var prefectureSuffixes = []string{"都", "道", "府", "県"}

// normalizeRegion lowercases, trims and strips the administrative suffix so
// "東京都" and "東京" resolve to the same key. The suffix is kept when the
// remainder would be a single character ("京都") and for "北海道".
func normalizeRegion(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "北海道" {
		return s
	}
	for _, suffix := range prefectureSuffixes {
		base := strings.TrimSuffix(s, suffix)
		if base != s && utf8.RuneCountInString(base) >= 2 {
			return base
		}
	}
	return s
}

func isNearby(clientLocation, prefecture string) bool {
	neighbours, ok := nearbyRegions[normalizeRegion(clientLocation)]
	if !ok {
		return false
	}
	p := normalizeRegion(prefecture)
	for _, n := range neighbours {
		if n == p {
			return true
		}
	}
	return false
}

// isRelatedSpecialty expects both arguments already lowercased.
func isRelatedSpecialty(specialty, businessType string) bool {
	for _, entry := range relatedSpecialtyTable {
		if !strings.Contains(businessType, entry.token) {
			continue
		}
		for _, r := range entry.related {
			if strings.Contains(specialty, r) {
				return true
			}
		}
	}
	return false
}

func businessTokens(businessType string) []string {
	fields := strings.FieldsFunc(businessType, func(r rune) bool {
		switch r {
		case '・', '/', '／', '、', ',', '，', ' ', '\t', '　':
			return true
		}
		return false
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// isDirectSpecialty expects both arguments already lowercased.
func isDirectSpecialty(specialty, businessType string) bool {
	if strings.Contains(specialty, businessType) || strings.Contains(businessType, specialty) {
		return true
	}
	for _, token := range businessTokens(businessType) {
		if strings.Contains(specialty, token) {
			return true
		}
	}
	return false
}
