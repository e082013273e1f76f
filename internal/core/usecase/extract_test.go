package usecase

import (
	"testing"
	"time"
)

func fixedNowExtractor(t *testing.T, date string) *Extractor {
	t.Helper()
	now, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("parse fixed date: %v", err)
	}
	return &Extractor{now: func() time.Time { return now }}
}

func TestExtractAmountsNormalizedToYuan(t *testing.T) {
	amounts := extractAmounts("预算3.5亿元，其中设备采购500万元，单价不超过200元")
	if len(amounts) != 3 {
		t.Fatalf("expected 3 amounts, got %v", amounts)
	}
	if amounts[0] != 3.5e8 {
		t.Fatalf("expected 3.5亿元 = 350000000, got %f", amounts[0])
	}
	if amounts[1] != 5e6 {
		t.Fatalf("expected 500万元 = 5000000, got %f", amounts[1])
	}
	if amounts[2] != 200 {
		t.Fatalf("expected 200元 = 200, got %f", amounts[2])
	}
}

func TestExtractDates(t *testing.T) {
	dates := extractDates("2024年3月5日发布，2023-11-02截止")
	if len(dates) != 2 {
		t.Fatalf("expected 2 dates, got %v", dates)
	}
	if dates[0] != "2024-03-05" || dates[1] != "2023-11-02" {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestExtractDatesRejectsImpossible(t *testing.T) {
	if dates := extractDates("2024年13月1日"); len(dates) != 0 {
		t.Fatalf("expected month 13 rejected, got %v", dates)
	}
}

func TestExtractPhones(t *testing.T) {
	phones := extractPhones("联系电话13912345678，座机010-1234不算")
	if len(phones) != 1 || phones[0] != "13912345678" {
		t.Fatalf("unexpected phones %v", phones)
	}
}

func TestExtractCompanyNamesDeduped(t *testing.T) {
	names := extractCompanyNames("天成建设集团与华宇公司合作，天成建设集团为牵头方")
	if len(names) != 2 {
		t.Fatalf("expected 2 unique names, got %v", names)
	}
	if names[0] != "天成建设集团" {
		t.Fatalf("unexpected first name %q", names[0])
	}
}

func TestExtractDateRangeRelativeDays(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("最近30天的中标公告")
	if r == nil {
		t.Fatalf("expected a range")
	}
	if r.From != "2024-05-31" || r.To != "2024-06-30" {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestExtractDateRangeChineseNumeral(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("近一年的政策")
	if r == nil || r.From != "2023-06-30" {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestExtractDateRangeHalfYear(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("近半年的舆情")
	if r == nil || r.From != "2023-12-30" {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestExtractDateRangeThisYear(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("今年发布的扶持政策")
	if r == nil || r.From != "2024-01-01" || r.To != "2024-06-30" {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestExtractDateRangeLastYear(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("去年的中标情况")
	if r == nil || r.From != "2023-01-01" || r.To != "2023-12-31" {
		t.Fatalf("unexpected range %+v", r)
	}
}

func TestExtractDateRangeBareRecent(t *testing.T) {
	e := fixedNowExtractor(t, "2024-06-30")
	r := e.extractDateRange("最近有什么新政策")
	if r == nil || r.From != "2024-05-31" {
		t.Fatalf("expected 30-day default window, got %+v", r)
	}
}

func TestParseCNNumber(t *testing.T) {
	cases := []struct {
		in     string
		n      int
		halves bool
	}{
		{"3", 3, false},
		{"三", 3, false},
		{"两", 2, false},
		{"十", 10, false},
		{"十二", 12, false},
		{"三十", 30, false},
		{"半", 0, true},
		{"", 0, false},
	}
	for _, tc := range cases {
		n, halves := parseCNNumber(tc.in)
		if n != tc.n || halves != tc.halves {
			t.Fatalf("parseCNNumber(%q) = (%d, %v), want (%d, %v)", tc.in, n, halves, tc.n, tc.halves)
		}
	}
}
