// Package advisor asks a generative model for financial advice and a daily
// financial horoscope. Results are always usable: failures produce fixed
// fallback values with Degraded set.
package advisor

import (
	"context"
	"errors"

	"github.com/dvloznov/finsight/internal/domain"
)

// ErrUnknownSign is returned by LookupSign for names outside the zodiac catalog.
var ErrUnknownSign = errors.New("unknown zodiac sign")

// AdviceResult is the financial-health summary.
type AdviceResult struct {
	Summary     string   `json:"summary"`
	Tips        []string `json:"tips"`
	HealthScore int      `json:"healthScore"`
	Degraded    bool     `json:"degraded"`
}

// FortuneResult is the daily financial horoscope for one sign.
type FortuneResult struct {
	Sign         string `json:"sign"`
	Overview     string `json:"overview"`
	FortuneScore int    `json:"fortuneScore"`
	LuckyColor   string `json:"luckyColor"`
	LuckyNumber  string `json:"luckyNumber"`
	Do           string `json:"do"`
	Dont         string `json:"dont"`
	Degraded     bool   `json:"degraded"`
}

// Advisor is the narrow interface over the AI provider.
type Advisor interface {
	RequestAdvice(ctx context.Context, snap domain.Snapshot) AdviceResult
	RequestFortune(ctx context.Context, sign domain.ZodiacSign) FortuneResult
}

// LookupSign validates a sign name against the zodiac catalog.
func LookupSign(name string) (domain.ZodiacSign, error) {
	sign, ok := domain.LookupZodiacSign(name)
	if !ok {
		return domain.ZodiacSign{}, ErrUnknownSign
	}
	return sign, nil
}

// Fallback messages.
const (
	offlineSummary  = "AI 理財分析目前離線，尚未設定 AI 服務金鑰。"
	offlineTip      = "請設定 API_KEY 環境變數以啟用 AI 理財建議。"
	offlineOverview = "AI 財運預測目前離線，尚未設定 AI 服務金鑰。"

	unavailableSummary  = "AI 分析暫時不可用。"
	unavailableTip      = "請稍後再試"
	unavailableOverview = "AI 財運預測暫時不可用，請稍後再試。"

	neutralHealthScore = 50
)

// OfflineAdvice is returned when no AI credential is configured.
func OfflineAdvice() AdviceResult {
	return AdviceResult{
		Summary:     offlineSummary,
		Tips:        []string{offlineTip},
		HealthScore: 0,
		Degraded:    true,
	}
}

// UnavailableAdvice is returned when the AI call or its response fails.
func UnavailableAdvice() AdviceResult {
	return AdviceResult{
		Summary:     unavailableSummary,
		Tips:        []string{unavailableTip},
		HealthScore: neutralHealthScore,
		Degraded:    true,
	}
}

// OfflineFortune is returned when no AI credential is configured.
func OfflineFortune(sign domain.ZodiacSign) FortuneResult {
	return FortuneResult{Sign: sign.Name, Overview: offlineOverview, Degraded: true}
}

// UnavailableFortune is returned when the AI call or its response fails.
func UnavailableFortune(sign domain.ZodiacSign) FortuneResult {
	return FortuneResult{Sign: sign.Name, Overview: unavailableOverview, Degraded: true}
}

// Offline is the Advisor used without a credential.
type Offline struct{}

func (Offline) RequestAdvice(context.Context, domain.Snapshot) AdviceResult {
	return OfflineAdvice()
}

func (Offline) RequestFortune(_ context.Context, sign domain.ZodiacSign) FortuneResult {
	return OfflineFortune(sign)
}

var _ Advisor = Offline{}
