package textscan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/risk"
	"risk-vetting-engine/textscan"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"schemed only once", "ด่วน! ยืนยัน OTP ที่ http://bit.ly/abc", []string{"http://bit.ly/abc"}},
		{"bare domain", "go to kbank-secure.com/login now", []string{"kbank-secure.com/login"}},
		{"trailing punctuation", "see https://example.com/a.", []string{"https://example.com/a"}},
		{"file names are not links", "open report.pdf and notes.txt", []string{}},
		{"dedup and sort", "b.example.com a.example.com b.example.com", []string{"a.example.com", "b.example.com"}},
		{"mixed", "https://z.example.org and y.example.net", []string{"https://z.example.org", "y.example.net"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, textscan.Extract(tc.text).URLs)
		})
	}
}

func TestExtractDigitRuns(t *testing.T) {
	e := textscan.Extract("โทร 081-234-5678 หรือ 0812345678 โอนเข้า 123-4-56789-0 ref 12345678")
	assert.Equal(t, []string{"0812345678"}, e.Phones)
	assert.Equal(t, []string{"0812345678"}, e.BankAccounts)

	e = textscan.Extract("acct 1234567890123 tel 021234567")
	assert.Equal(t, []string{"021234567", "1234567890123"}, e.Phones)
	assert.Equal(t, []string{"1234567890123"}, e.BankAccounts)
}

func TestScanThaiOTPWithShortLinkIsHigh(t *testing.T) {
	res := textscan.New(nil, textscan.DefaultThresholds()).Scan("ด่วน! ยืนยัน OTP ที่ http://bit.ly/abc")
	assert.Len(t, res.Entities.URLs, 1)
	assert.Equal(t, risk.High, res.Level)
	assert.Equal(t, 70, res.Score)
	assert.Contains(t, risk.Texts(res.Reasons), "Link combined with a request for secret codes")
	assert.Equal(t, risk.TagScore, res.Reasons[len(res.Reasons)-1].Tag)
}

func TestScanLevels(t *testing.T) {
	s := textscan.New(nil, textscan.DefaultThresholds())

	plain := s.Scan("See you at lunch tomorrow")
	assert.Equal(t, risk.Low, plain.Level)
	assert.Equal(t, "No prominent risk pattern found", plain.Reasons[0].Text)

	lure := s.Scan("คุณได้รับของรางวัล ติดต่อธนาคาร")
	assert.Equal(t, 20, lure.Score)
	assert.Equal(t, risk.Low, lure.Level)

	medium := s.Scan("Your parcel is waiting: https://parcel.example.com")
	assert.Equal(t, 10, medium.Score)

	urgentSecret := s.Scan("URGENT: send your password")
	assert.Equal(t, 40, urgentSecret.Score)
	assert.Equal(t, risk.Medium, urgentSecret.Level)
}

func TestScanEmpty(t *testing.T) {
	res := textscan.New(nil, textscan.DefaultThresholds()).Scan("  \n\t ")
	assert.Equal(t, risk.Low, res.Level)
	assert.Equal(t, []risk.Reason{risk.EmptyInputReason}, res.Reasons)
	assert.Empty(t, res.Entities.URLs)
}

func TestParseCategoriesValidates(t *testing.T) {
	_, err := textscan.ParseCategories([]byte("categories:\n  - name: x\n    weight: 0\n    phrases: [a]\n"))
	assert.Error(t, err)

	cats, err := textscan.ParseCategories([]byte("categories:\n  - name: x\n    weight: 5\n    phrases: [ABC]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, cats[0].Phrases)
}
