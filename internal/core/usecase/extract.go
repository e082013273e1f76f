package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule-based slot extraction. Patterns follow the bidding-domain text
// conventions: amounts with 亿/万/元 units, dates in 年月日 or dashed
// forms, mainland 11-digit phones, and entity names ending in a
// company suffix. Everything extracted here outranks model-guessed
// values.

var (
	amountPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(亿元|亿|万元|万|元)`)
	datePattern   = regexp.MustCompile(`(\d{4})[年\-/.](\d{1,2})(?:[月\-/.](\d{1,2})[日号]?)?`)
	phonePattern  = regexp.MustCompile(`(?:\+?86[-\s]?)?(1[3-9]\d{9})`)
	orgPattern    = regexp.MustCompile(`([\p{Han}A-Za-z0-9]{1,24}?(?:公司|集团|供应商|厂商))`)

	relativeRangePattern = regexp.MustCompile(`(?:最近|近)\s*([0-9一两二三四五六七八九十半]+)\s*(天|日|个月|月|年)`)
)

type DateRange struct {
	From string
	To   string
}

type Extraction struct {
	Amounts      []float64 // normalized to yuan
	Dates        []string  // YYYY-MM-DD
	DateRange    *DateRange
	Phones       []string
	CompanyNames []string
}

type Extractor struct {
	now func() time.Time
}

func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

func (e *Extractor) Extract(text string) Extraction {
	return Extraction{
		Amounts:      extractAmounts(text),
		Dates:        extractDates(text),
		DateRange:    e.extractDateRange(text),
		Phones:       extractPhones(text),
		CompanyNames: extractCompanyNames(text),
	}
}

func extractAmounts(text string) []float64 {
	text = strings.ReplaceAll(text, ",", "")
	var out []float64
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "亿元", "亿":
			value *= 1e8
		case "万元", "万":
			value *= 1e4
		}
		if value < 0 {
			continue
		}
		out = append(out, value)
	}
	return out
}

func extractDates(text string) []string {
	var out []string
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day := 1
		if m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		out = append(out, fmt.Sprintf("%04d-%02d-%02d", year, month, day))
	}
	return out
}

func extractPhones(text string) []string {
	var out []string
	for _, m := range phonePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func extractCompanyNames(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range orgPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// extractDateRange resolves relative phrases (最近30天, 近一年, 今年)
// into an absolute [from, to] window ending today.
func (e *Extractor) extractDateRange(text string) *DateRange {
	today := e.now().UTC()

	if m := relativeRangePattern.FindStringSubmatch(text); m != nil {
		n, halves := parseCNNumber(m[1])
		if n > 0 || halves {
			var from time.Time
			switch m[2] {
			case "天", "日":
				from = today.AddDate(0, 0, -n)
			case "个月", "月":
				if halves {
					from = today.AddDate(0, 0, -15)
				} else {
					from = today.AddDate(0, -n, 0)
				}
			case "年":
				if halves {
					from = today.AddDate(0, -6, 0)
				} else {
					from = today.AddDate(-n, 0, 0)
				}
			default:
				return nil
			}
			return &DateRange{From: from.Format("2006-01-02"), To: today.Format("2006-01-02")}
		}
	}

	if strings.Contains(text, "今年") {
		from := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return &DateRange{From: from.Format("2006-01-02"), To: today.Format("2006-01-02")}
	}
	if strings.Contains(text, "去年") {
		from := time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)
		return &DateRange{From: from.Format("2006-01-02"), To: to.Format("2006-01-02")}
	}
	if strings.Contains(text, "最近") || strings.Contains(text, "近期") {
		// Bare "recently" defaults to a 30-day window.
		from := today.AddDate(0, 0, -30)
		return &DateRange{From: from.Format("2006-01-02"), To: today.Format("2006-01-02")}
	}
	return nil
}

var cnDigits = map[rune]int{
	'一': 1, '两': 2, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9, '十': 10,
}

// parseCNNumber handles plain digits plus the small Chinese numerals
// that appear in range phrases. The bool reports a 半 (half) marker.
func parseCNNumber(s string) (int, bool) {
	if s == "半" {
		return 0, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, false
	}
	runes := []rune(s)
	if len(runes) == 1 {
		if n, ok := cnDigits[runes[0]]; ok {
			return n, false
		}
	}
	if len(runes) == 2 && runes[0] == '十' {
		if n, ok := cnDigits[runes[1]]; ok {
			return 10 + n, false
		}
	}
	if len(runes) == 2 && runes[1] == '十' {
		if n, ok := cnDigits[runes[0]]; ok {
			return n * 10, false
		}
	}
	return 0, false
}
